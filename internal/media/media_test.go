package media

import "testing"

func TestNormalizeSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 255},
		{-5, 255},
		{1, 60},
		{60, 60},
		{61, 120},
		{300, 510},
		{1080, 1080},
		{4096, 1080},
	}
	for _, c := range cases {
		if got := NormalizeSize(c.in); got != c.want {
			t.Errorf("NormalizeSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBaseURLRenderer(t *testing.T) {
	r := NewBaseURLRenderer("https://media.example.com/")
	if got := r.ImageURL("/products/shirt.jpg"); got != "https://media.example.com/products/shirt.jpg" {
		t.Fatalf("unexpected image url %q", got)
	}
	if got := r.ThumbnailURL("products/shirt.jpg", 100); got != "https://media.example.com/thumbnails/120x120/products/shirt.jpg" {
		t.Fatalf("unexpected thumbnail url %q", got)
	}
}
