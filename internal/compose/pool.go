package compose

import (
	"image"
	"sync"
)

// imagePool pools *image.RGBA instances for a fixed resolution.
// The compositor renders at a consistent canvas size, so a simple pool
// works well.
type imagePool struct {
	pool sync.Pool
	w, h int
	mu   sync.Mutex
}

func (p *imagePool) Get(w, h int) *image.RGBA {
	p.mu.Lock()
	if p.w == w && p.h == h {
		p.mu.Unlock()
		if v := p.pool.Get(); v != nil {
			return v.(*image.RGBA)
		}
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	// Resolution changed — reset pool
	p.w = w
	p.h = h
	p.pool = sync.Pool{}
	p.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (p *imagePool) Put(img *image.RGBA) {
	b := img.Bounds()
	p.mu.Lock()
	match := p.w == b.Dx() && p.h == b.Dy()
	p.mu.Unlock()
	if match {
		p.pool.Put(img)
	}
}
