package geometry

import (
	"image"
	"math"
	"testing"
)

func TestNewBox(t *testing.T) {
	box := NewBox(1, 10, 20, 100, 50)

	if box.Page != 1 {
		t.Errorf("expected page 1, got %d", box.Page)
	}
	if box.X != 10 || box.Y != 20 {
		t.Errorf("expected origin (10,20), got (%g,%g)", box.X, box.Y)
	}
	if box.Width != 100 || box.Height != 50 {
		t.Errorf("expected size 100x50, got %gx%g", box.Width, box.Height)
	}
	if box.Normalized {
		t.Error("NewBox should produce a pixel box")
	}
}

func TestBoundingBox_Validate(t *testing.T) {
	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"valid", NewBox(1, 0, 0, 10, 10), false},
		{"zero size", NewBox(1, 5, 5, 0, 0), false},
		{"page zero", NewBox(0, 0, 0, 10, 10), true},
		{"negative width", BoundingBox{Page: 1, Width: -1, Height: 5}, true},
		{"negative height", BoundingBox{Page: 1, Width: 5, Height: -1}, true},
		{"NaN coordinate", BoundingBox{Page: 1, X: math.NaN(), Width: 5, Height: 5}, true},
		{"infinite coordinate", BoundingBox{Page: 1, Y: math.Inf(1), Width: 5, Height: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBoundingBox_Overlaps(t *testing.T) {
	base := NewBox(1, 10, 10, 100, 100)

	tests := []struct {
		name  string
		other BoundingBox
		want  bool
	}{
		{"overlapping", NewBox(1, 50, 50, 100, 100), true},
		{"contained", NewBox(1, 20, 20, 50, 50), true},
		{"containing", NewBox(1, 0, 0, 200, 200), true},
		{"touching edge", NewBox(1, 110, 10, 50, 100), false},
		{"separate", NewBox(1, 200, 200, 50, 50), false},
		{"same rect other page", NewBox(2, 10, 10, 100, 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnion(t *testing.T) {
	boxes := []BoundingBox{
		NewBox(1, 100, 200, 50, 20),
		NewBox(1, 155, 200, 60, 20),
	}

	got, err := Union(boxes)
	if err != nil {
		t.Fatalf("Union returned error: %v", err)
	}

	want := NewBox(1, 100, 200, 115, 20)
	if got != want {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
}

func TestUnion_SingleBox(t *testing.T) {
	box := NewBox(3, 5, 6, 7, 8)
	got, err := Union([]BoundingBox{box})
	if err != nil {
		t.Fatalf("Union returned error: %v", err)
	}
	if got != box {
		t.Errorf("Union of one box = %+v, want %+v", got, box)
	}
}

func TestUnion_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if _, err := Union(nil); err == nil {
			t.Error("expected error for empty union")
		}
	})

	t.Run("cross page", func(t *testing.T) {
		boxes := []BoundingBox{NewBox(1, 0, 0, 10, 10), NewBox(2, 0, 0, 10, 10)}
		if _, err := Union(boxes); err == nil {
			t.Error("expected error for union across pages")
		}
	})

	t.Run("mixed conventions", func(t *testing.T) {
		boxes := []BoundingBox{NewBox(1, 0, 0, 10, 10), NewNormalizedBox(1, 0, 0, 0.5, 0.5)}
		if _, err := Union(boxes); err == nil {
			t.Error("expected error for mixed pixel and normalized boxes")
		}
	})
}

func TestBoundingBox_Inflate(t *testing.T) {
	tests := []struct {
		name       string
		box        BoundingBox
		px         float64
		pageW      float64
		pageH      float64
		want       BoundingBox
	}{
		{
			name:  "interior box",
			box:   NewBox(1, 100, 200, 50, 20),
			px:    5,
			pageW: 1000, pageH: 1000,
			want: NewBox(1, 95, 195, 60, 30),
		},
		{
			name:  "clamped at origin",
			box:   NewBox(1, 2, 3, 10, 10),
			px:    5,
			pageW: 1000, pageH: 1000,
			want: NewBox(1, 0, 0, 17, 18),
		},
		{
			name:  "clamped at page edge",
			box:   NewBox(1, 990, 995, 8, 4),
			px:    5,
			pageW: 1000, pageH: 1000,
			want: NewBox(1, 985, 990, 15, 10),
		},
		{
			name:  "no page dims means no clamp on far edge",
			box:   NewBox(1, 10, 10, 10, 10),
			px:    5,
			pageW: 0, pageH: 0,
			want: NewBox(1, 5, 5, 20, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.Inflate(tt.px, tt.pageW, tt.pageH)
			if got != tt.want {
				t.Errorf("Inflate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBoundingBox_ToPixels(t *testing.T) {
	norm := NewNormalizedBox(2, 0.1, 0.25, 0.5, 0.1)
	got := norm.ToPixels(1000, 2000)

	want := NewBox(2, 100, 500, 500, 200)
	if got != want {
		t.Errorf("ToPixels() = %+v, want %+v", got, want)
	}

	pixel := NewBox(1, 10, 20, 30, 40)
	if pixel.ToPixels(1000, 1000) != pixel {
		t.Error("ToPixels should leave pixel boxes unchanged")
	}
}

func TestBoundingBox_PixelRect(t *testing.T) {
	box := NewBox(1, 10.4, 20.6, 30.2, 40.1)
	got := box.PixelRect()

	want := image.Rect(10, 20, 41, 61)
	if got != want {
		t.Errorf("PixelRect() = %v, want %v", got, want)
	}
}

func TestFromPolygon(t *testing.T) {
	points := []Point{
		{X: 10, Y: 30},
		{X: 60, Y: 25},
		{X: 62, Y: 45},
		{X: 12, Y: 50},
	}

	got, err := FromPolygon(1, points, false)
	if err != nil {
		t.Fatalf("FromPolygon returned error: %v", err)
	}

	want := NewBox(1, 10, 25, 52, 25)
	if got != want {
		t.Errorf("FromPolygon() = %+v, want %+v", got, want)
	}

	if _, err := FromPolygon(1, nil, false); err == nil {
		t.Error("expected error for empty polygon")
	}
}
