package domain

import "time"

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Newsletter   bool      `json:"newsletter"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	Newsletter bool   `json:"newsletter"`
}

// BlogPost is an article shown on the blog page.
type BlogPost struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	ImageURL  string    `json:"image_url"`
	ReadTime  string    `json:"read_time"`
	CreatedAt time.Time `json:"created_at"`
}

// BlogCategoryAll disables category filtering when listing posts.
const BlogCategoryAll = "all"

// SampleBlogPosts are inserted when the blog is empty.
var SampleBlogPosts = []BlogPost{
	{
		Title:    "Understanding Liver Function Tests: What You Need to Know",
		Excerpt:  "Learn about the different types of liver function tests, what they measure, and how to interpret your results.",
		Content:  "Full content here...",
		Category: "research",
		Author:   "Dr. Sarah Johnson",
		ImageURL: "https://via.placeholder.com/800x400?text=Liver+Function+Tests",
		ReadTime: "5 min read",
	},
	{
		Title:    "10 Foods That Support Liver Health",
		Excerpt:  "Discover the best foods to include in your diet to keep your liver healthy and functioning optimally.",
		Content:  "Full content here...",
		Category: "nutrition",
		Author:   "Nutrition Team",
		ImageURL: "https://via.placeholder.com/800x400?text=Healthy+Foods",
		ReadTime: "7 min read",
	},
}
