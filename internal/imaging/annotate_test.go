package imaging

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestAnnotate(t *testing.T) {
	img := createInMemoryImage(120, 80, color.White)
	boxes := []Box{{Rect: image.Rect(20, 30, 80, 60), Label: "Area 1"}}

	out := Annotate(img, boxes, DefaultBoxColor)

	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds: got %v, want %v", out.Bounds(), img.Bounds())
	}
	green := color.RGBA{0, 255, 0, 255}
	for _, p := range []image.Point{{20, 30}, {79, 59}, {21, 45}, {50, 31}} {
		if out.RGBAAt(p.X, p.Y) != green {
			t.Errorf("outline pixel %v: got %v", p, out.RGBAAt(p.X, p.Y))
		}
	}
	if out.RGBAAt(50, 45) != (color.RGBA{255, 255, 255, 255}) {
		t.Error("box interior should be untouched")
	}

	labelled := false
	for y := 14; y < 30; y++ {
		for x := 20; x < 70; x++ {
			if out.RGBAAt(x, y) == green {
				labelled = true
			}
		}
	}
	if !labelled {
		t.Error("label should be drawn above the box")
	}

	if r, _, _, _ := img.At(20, 30).RGBA(); r>>8 != 255 {
		t.Error("Annotate modified its input")
	}
}

func TestAnnotate_BoxOutsideImage(t *testing.T) {
	img := createInMemoryImage(20, 20, color.White)
	out := Annotate(img, []Box{{Rect: image.Rect(50, 50, 60, 60), Label: "Area 1"}}, "#FF0000")
	if out.Bounds().Dx() != 20 {
		t.Error("unexpected size")
	}
}

func TestAnnotate_InvalidColorFallsBack(t *testing.T) {
	img := createInMemoryImage(20, 20, color.White)
	out := Annotate(img, []Box{{Rect: image.Rect(2, 2, 18, 18)}}, "nope")
	if out.RGBAAt(2, 2) != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("fallback colour: got %v", out.RGBAAt(2, 2))
	}
}

func TestSaveJPEG(t *testing.T) {
	img := createInMemoryImage(16, 16, color.Black)
	path := filepath.Join(t.TempDir(), "debug.jpg")

	if err := SaveJPEG(img, path); err != nil {
		t.Fatalf("SaveJPEG failed: %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("expected a non-empty file, stat err %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", color.RGBA{255, 0, 0, 255}, false},
		{"00FF00", color.RGBA{0, 255, 0, 255}, false},
		{"#0000FF80", color.RGBA{0, 0, 255, 128}, false},
		{"", color.RGBA{}, true},
		{"#FFF", color.RGBA{}, true},
		{"#GGGGGG", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHexColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
