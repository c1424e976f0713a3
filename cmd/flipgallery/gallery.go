// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/flip"
)

// Screen selects what the gallery shows.
type Screen int

const (
	ScreenEmpty Screen = iota
	ScreenGallery
	ScreenPhoto
)

func (s Screen) String() string {
	switch s {
	case ScreenGallery:
		return "gallery"
	case ScreenPhoto:
		return "photo"
	}
	return "empty"
}

// Thumb is one decoded, scaled thumbnail. Texture is assigned on the
// frame goroutine the first time the thumbnail is drawn.
type Thumb struct {
	Path    string
	Format  string
	Image   *image.RGBA
	Texture int
}

// Photo is one full-size image.
type Photo struct {
	Path    string
	Format  string
	Image   image.Image
	Texture int
}

// Model is one generation of gallery state.
type Model struct {
	Screen Screen
	Title  string
	Thumbs []Thumb
	Total  int
	Failed int
	Photo  Photo
}

// Msg is a gallery message: [OpenSet] or [Open].
type Msg interface {
	msg()
}

// OpenSet shows a grid of thumbnails for every image in Dir, or for Paths.
type OpenSet struct {
	Dir   string
	Paths []string
}

// Open shows a single photo.
type Open struct {
	Path string
}

func (OpenSet) msg() {}
func (Open) msg()    {}

// textures stands in for GPU texture memory. It belongs to the frame
// goroutine.
type textures struct {
	next     int
	live     map[int]image.Image
	uploaded int
	freed    int
}

func newTextures() *textures {
	return &textures{live: make(map[int]image.Image)}
}

func (t *textures) upload(img image.Image) int {
	t.next++
	t.live[t.next] = img
	t.uploaded++
	return t.next
}

func (t *textures) free(id int) {
	if _, ok := t.live[id]; !ok {
		return
	}
	delete(t.live, id)
	t.freed++
}

func (t *textures) len() int {
	return len(t.live)
}

// Gallery walks a script of sets and photos, one step per dwell period.
type Gallery struct {
	rt        *flip.Runtime
	log       *slog.Logger
	out       io.Writer
	thumbSize int
	dwell     int

	script     []Msg
	step       int
	stepFrames int
	done       bool

	tex    *textures
	status string

	errs atomix.Int64
}

// NewGallery returns a gallery that plays cfg's script and prints status
// lines to out.
func NewGallery(cfg Config, log *slog.Logger, out io.Writer) *Gallery {
	return &Gallery{
		log:       log,
		out:       out,
		thumbSize: cfg.ThumbSize,
		dwell:     cfg.DwellFrames,
		script:    cfg.script(),
		tex:       newTextures(),
	}
}

func (g *Gallery) Init(rt *flip.Runtime) (Model, []Msg) {
	g.rt = rt
	var msgs []Msg
	if len(g.script) > 0 {
		msgs = append(msgs, g.script[0])
		g.step = 1
	}
	return Model{}, msgs
}

func (g *Gallery) Render(m *Model, msgs []Msg) []Msg {
	switch m.Screen {
	case ScreenGallery:
		for i := range m.Thumbs {
			if m.Thumbs[i].Texture == 0 {
				m.Thumbs[i].Texture = g.tex.upload(m.Thumbs[i].Image)
			}
		}
	case ScreenPhoto:
		if m.Photo.Texture == 0 {
			m.Photo.Texture = g.tex.upload(m.Photo.Image)
		}
	}
	g.show(m)

	g.stepFrames++
	if g.stepFrames < g.dwell {
		return msgs
	}
	if g.step < len(g.script) {
		msgs = append(msgs, g.script[g.step])
		g.step++
		g.stepFrames = 0
		return msgs
	}
	g.done = true
	return msgs
}

func (g *Gallery) show(m *Model) {
	var s string
	switch m.Screen {
	case ScreenGallery:
		s = fmt.Sprintf("gallery %s %d/%d failed=%d textures=%d",
			m.Title, len(m.Thumbs), m.Total, m.Failed, g.tex.len())
	case ScreenPhoto:
		b := m.Photo.Image.Bounds()
		s = fmt.Sprintf("photo %s %s %dx%d textures=%d",
			m.Title, m.Photo.Format, b.Dx(), b.Dy(), g.tex.len())
	default:
		s = "empty"
	}
	if s != g.status {
		g.status = s
		fmt.Fprintln(g.out, s)
	}
}

// Swap frees the textures of the outgoing generation.
func (g *Gallery) Swap(old, new *Model) {
	n := 0
	for _, t := range old.Thumbs {
		if t.Texture != 0 {
			g.tex.free(t.Texture)
			n++
		}
	}
	if old.Photo.Texture != 0 {
		g.tex.free(old.Photo.Texture)
		n++
	}
	g.log.Debug("flipgallery: swap",
		"from", old.Screen.String(), "to", new.Screen.String(), "freed", n)
}

func (g *Gallery) Update(pub flip.Publisher[Model], msg Msg) error {
	switch msg := msg.(type) {
	case OpenSet:
		paths, title := msg.Paths, "paths"
		if msg.Dir != "" {
			var err error
			if paths, err = listImages(msg.Dir); err != nil {
				return err
			}
			title = filepath.Base(msg.Dir)
		}
		w := pub.Publish(Model{Screen: ScreenGallery, Title: title, Total: len(paths)})
		g.log.Info("flipgallery: open set", "title", title, "images", len(paths), "generation", w.Generation())
		return g.rt.Go(func() error { return g.loadSet(w, paths) })

	case Open:
		photo, err := loadPhoto(msg.Path)
		if err != nil {
			return err
		}
		w := pub.Publish(Model{Screen: ScreenPhoto, Title: filepath.Base(msg.Path), Photo: photo})
		g.log.Info("flipgallery: open photo", "path", msg.Path, "generation", w.Generation())
		return nil
	}
	return fmt.Errorf("flipgallery: unknown message %T", msg)
}

// loadSet decodes paths one by one into the generation behind w, and stops
// as soon as that generation is gone.
func (g *Gallery) loadSet(w flip.Weak[Model], paths []string) error {
	for i, path := range paths {
		if !w.Alive() {
			g.log.Debug("flipgallery: set superseded", "loaded", i, "generation", w.Generation())
			return nil
		}
		thumb, err := loadThumb(path, g.thumbSize)
		if err != nil {
			g.HandleError(err)
		}

		ref, ok := w.Upgrade()
		if !ok {
			g.log.Debug("flipgallery: set superseded", "loaded", i, "generation", w.Generation())
			return nil
		}
		ref.Update(func(m *Model) {
			if err != nil {
				m.Failed++
				return
			}
			m.Thumbs = append(m.Thumbs, thumb)
		})
		ref.Release()
	}
	g.log.Debug("flipgallery: set loaded", "images", len(paths), "generation", w.Generation())
	return nil
}

func (g *Gallery) HandleError(err error) {
	g.errs.Add(1)
	g.log.Error("flipgallery: error", "err", err)
}

// Done reports whether the script has finished.
func (g *Gallery) Done() bool {
	return g.done
}

// Errors returns the number of errors handled so far.
func (g *Gallery) Errors() int64 {
	return g.errs.Load()
}
