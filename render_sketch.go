package portals

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gekko3d/portals/portalrt/core"
)

var (
	sketchBackground = color.RGBA{R: 24, G: 26, B: 32, A: 255}
	sketchPalette    = []color.RGBA{
		{R: 230, G: 120, B: 40, A: 255},
		{R: 60, G: 140, B: 230, A: 255},
		{R: 90, G: 200, B: 110, A: 255},
		{R: 220, G: 200, B: 70, A: 255},
		{R: 200, G: 90, B: 200, A: 255},
		{R: 120, G: 210, B: 210, A: 255},
	}
)

// SketchRenderHost rasterises captures on the CPU. Every draw item becomes
// a disc at its projected position; the result is scaled down to a
// thumbnail and labelled with the portal name.
type SketchRenderHost struct {
	ThumbWidth  int
	ThumbHeight int

	face   font.Face
	canvas *image.RGBA
	thumbs map[EntityId]*image.RGBA
}

func NewSketchRenderHost(thumbWidth, thumbHeight int) (*SketchRenderHost, error) {
	if thumbWidth <= 0 || thumbHeight <= 0 {
		return nil, fmt.Errorf("thumbnail size %dx%d", thumbWidth, thumbHeight)
	}
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    11,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return &SketchRenderHost{
		ThumbWidth:  thumbWidth,
		ThumbHeight: thumbHeight,
		face:        face,
		thumbs:      make(map[EntityId]*image.RGBA),
	}, nil
}

func (h *SketchRenderHost) Capture(req CaptureRequest) error {
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("capture of %s into %dx%d target", req.Name, req.Width, req.Height)
	}
	bounds := image.Rect(0, 0, req.Width, req.Height)
	if h.canvas == nil || h.canvas.Bounds() != bounds {
		h.canvas = image.NewRGBA(bounds)
	}
	draw.Draw(h.canvas, bounds, image.NewUniform(sketchBackground), image.Point{}, draw.Src)

	proj := req.Projection.Matrix()
	viewProj := proj.Mul4(core.ViewMatrix(req.Pose))
	halfW, halfH := float32(req.Width)/2, float32(req.Height)/2
	for _, item := range req.Draws {
		clip := viewProj.Mul4x1(item.Pose.Position.Vec4(1))
		if clip.W() <= 0 {
			continue
		}
		x := (clip.X()/clip.W() + 1) * halfW
		y := (1 - clip.Y()/clip.W()) * halfH
		r := item.Radius * proj.At(1, 1) / clip.W() * halfH
		fillDisc(h.canvas, x, y, max(r, 1), sketchPalette[int(item.Entity)%len(sketchPalette)])
	}

	thumb := image.NewRGBA(image.Rect(0, 0, h.ThumbWidth, h.ThumbHeight))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), h.canvas, bounds, draw.Src, nil)

	d := font.Drawer{
		Dst:  thumb,
		Src:  image.White,
		Face: h.face,
		Dot:  fixed.P(3, h.face.Metrics().Ascent.Ceil()+2),
	}
	d.DrawString(req.Name)

	h.thumbs[req.Portal] = thumb
	return nil
}

// Thumbnail returns the latest capture of a portal.
func (h *SketchRenderHost) Thumbnail(portal EntityId) (*image.RGBA, bool) {
	img, ok := h.thumbs[portal]
	return img, ok
}

// WritePNGs saves the latest thumbnail of every portal as portal-<id>.png.
func (h *SketchRenderHost) WritePNGs(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	ids := make([]EntityId, 0, len(h.thumbs))
	for id := range h.thumbs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := writePNG(filepath.Join(dir, fmt.Sprintf("portal-%d.png", id)), h.thumbs[id]); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, img)
}

func fillDisc(img *image.RGBA, cx, cy, r float32, c color.RGBA) {
	rect := image.Rect(int(cx-r), int(cy-r), int(cx+r)+1, int(cy+r)+1).Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			d := mgl32.Vec2{float32(x) + 0.5 - cx, float32(y) + 0.5 - cy}
			if d.Dot(d) <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
