package bot

import "fmt"

// Product is a catalog entry
type Product struct {
	Slug  string
	Name  string
	Price int // whole dollars
	Photo string
}

// Category groups products under one inline button
type Category struct {
	Slug     string
	Name     string
	Products []Product
}

// catalog is static; the shop has no inventory backend
var catalog = []Category{
	{
		Slug: "electronics",
		Name: "Electronics",
		Products: []Product{
			{Slug: "phone", Name: "Phone", Price: 699, Photo: "https://picsum.photos/seed/shop-phone/600/400"},
			{Slug: "laptop", Name: "Laptop", Price: 1299, Photo: "https://picsum.photos/seed/shop-laptop/600/400"},
		},
	},
	{
		Slug: "clothing",
		Name: "Clothing",
		Products: []Product{
			{Slug: "shirt", Name: "Blue Shirt", Price: 25, Photo: "https://picsum.photos/seed/shop-shirt/600/400"},
			{Slug: "jeans", Name: "Jeans", Price: 49, Photo: "https://picsum.photos/seed/shop-jeans/600/400"},
		},
	},
	{
		Slug: "books",
		Name: "Books",
		Products: []Product{
			{Slug: "novel", Name: "Novel", Price: 15, Photo: "https://picsum.photos/seed/shop-novel/600/400"},
			{Slug: "cookbook", Name: "Cookbook", Price: 30, Photo: "https://picsum.photos/seed/shop-cookbook/600/400"},
		},
	},
}

func findCategory(slug string) (Category, bool) {
	for _, c := range catalog {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

func findProduct(slug string) (Product, bool) {
	for _, c := range catalog {
		for _, p := range c.Products {
			if p.Slug == slug {
				return p, true
			}
		}
	}
	return Product{}, false
}

func (p Product) caption() string {
	return fmt.Sprintf("%s\nPrice: $%d", p.Name, p.Price)
}
