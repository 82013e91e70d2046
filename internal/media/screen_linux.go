//go:build linux

package media

/*
#cgo LDFLAGS: -lX11 -lXext

#include <stdlib.h>
#include <string.h>
#include <sys/ipc.h>
#include <sys/shm.h>
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/extensions/XShm.h>

typedef struct {
    Display* display;
    Window root;
    int screen;
    int width;
    int height;
    int useShm;
    XShmSegmentInfo shmInfo;
    XImage* shmImage;
} hmScreenCtx;

// hmOpenScreen connects to the default display and sets up an XShm
// image when the extension is available.
static hmScreenCtx* hmOpenScreen(int* err) {
    hmScreenCtx* c = (hmScreenCtx*)calloc(1, sizeof(hmScreenCtx));
    if (c == NULL) {
        *err = 4;
        return NULL;
    }

    c->display = XOpenDisplay(NULL);
    if (c->display == NULL) {
        free(c);
        *err = 1;
        return NULL;
    }

    c->screen = DefaultScreen(c->display);
    c->root = RootWindow(c->display, c->screen);
    c->width = DisplayWidth(c->display, c->screen);
    c->height = DisplayHeight(c->display, c->screen);

    int major, minor;
    Bool pixmaps;
    if (XShmQueryVersion(c->display, &major, &minor, &pixmaps)) {
        c->shmImage = XShmCreateImage(
            c->display,
            DefaultVisual(c->display, c->screen),
            DefaultDepth(c->display, c->screen),
            ZPixmap, NULL, &c->shmInfo,
            c->width, c->height);
        if (c->shmImage != NULL) {
            c->shmInfo.shmid = shmget(
                IPC_PRIVATE,
                c->shmImage->bytes_per_line * c->shmImage->height,
                IPC_CREAT | 0600);
            if (c->shmInfo.shmid >= 0) {
                c->shmInfo.shmaddr = c->shmImage->data = shmat(c->shmInfo.shmid, 0, 0);
                c->shmInfo.readOnly = False;
                if (XShmAttach(c->display, &c->shmInfo)) {
                    c->useShm = 1;
                }
            }
            if (!c->useShm) {
                XDestroyImage(c->shmImage);
                c->shmImage = NULL;
            }
        }
    }

    *err = 0;
    return c;
}

static void hmCloseScreen(hmScreenCtx* c) {
    if (c == NULL) {
        return;
    }
    if (c->shmImage != NULL) {
        XShmDetach(c->display, &c->shmInfo);
        shmdt(c->shmInfo.shmaddr);
        shmctl(c->shmInfo.shmid, IPC_RMID, 0);
        XDestroyImage(c->shmImage);
    }
    if (c->display != NULL) {
        XCloseDisplay(c->display);
    }
    free(c);
}

// hmGrab captures one full-screen frame into dst as RGBA. dst must hold
// width*height*4 bytes.
static int hmGrab(hmScreenCtx* c, unsigned char* dst) {
    XImage* image;
    if (c->useShm) {
        if (!XShmGetImage(c->display, c->root, c->shmImage, 0, 0, AllPlanes)) {
            return 2;
        }
        image = c->shmImage;
    } else {
        image = XGetImage(c->display, c->root, 0, 0,
                          c->width, c->height, AllPlanes, ZPixmap);
        if (image == NULL) {
            return 3;
        }
    }

    if (image->bits_per_pixel == 32) {
        // BGRX rows, swizzled to RGBA.
        for (int y = 0; y < c->height; y++) {
            unsigned char* row = (unsigned char*)image->data + (size_t)y * image->bytes_per_line;
            unsigned char* out = dst + (size_t)y * c->width * 4;
            for (int x = 0; x < c->width; x++) {
                out[x*4+0] = row[x*4+2];
                out[x*4+1] = row[x*4+1];
                out[x*4+2] = row[x*4+0];
                out[x*4+3] = 255;
            }
        }
    } else {
        for (int y = 0; y < c->height; y++) {
            unsigned char* out = dst + (size_t)y * c->width * 4;
            for (int x = 0; x < c->width; x++) {
                unsigned long pixel = XGetPixel(image, x, y);
                if (image->bits_per_pixel == 16) {
                    out[x*4+0] = ((pixel >> 11) & 0x1F) * 255 / 31;
                    out[x*4+1] = ((pixel >> 5) & 0x3F) * 255 / 63;
                    out[x*4+2] = (pixel & 0x1F) * 255 / 31;
                } else {
                    out[x*4+0] = (pixel >> 16) & 0xFF;
                    out[x*4+1] = (pixel >> 8) & 0xFF;
                    out[x*4+2] = pixel & 0xFF;
                }
                out[x*4+3] = 255;
            }
        }
    }

    if (!c->useShm) {
        XDestroyImage(image);
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"image"
	"unsafe"
)

func init() {
	RegisterScreenFactory(func() (ScreenBackend, error) {
		return &x11ScreenBackend{}, nil
	})
}

// x11ScreenBackend captures the root window of the default X display.
type x11ScreenBackend struct{}

func (b *x11ScreenBackend) Name() string { return "x11" }

func (b *x11ScreenBackend) Open(onEnded func()) (VideoTrack, error) {
	var cerr C.int
	ctx := C.hmOpenScreen(&cerr)
	if ctx == nil {
		if int(cerr) == 1 {
			return nil, fmt.Errorf("%w: cannot open X11 display (is DISPLAY set?)", ErrNotSupported)
		}
		return nil, fmt.Errorf("open X11 screen capture: error %d", int(cerr))
	}
	return newScreenTrack(&x11Grabber{ctx: ctx}, int(ctx.width), int(ctx.height), onEnded), nil
}

// x11Grabber satisfies screenGrabber over one X11 capture context. Calls
// are serialized by the owning screenTrack.
type x11Grabber struct {
	ctx *C.hmScreenCtx
}

func (g *x11Grabber) Grab(dst *image.RGBA) error {
	if rc := C.hmGrab(g.ctx, (*C.uchar)(unsafe.Pointer(&dst.Pix[0]))); rc != 0 {
		return fmt.Errorf("x11 screen grab failed: error %d", int(rc))
	}
	return nil
}

func (g *x11Grabber) Close() {
	C.hmCloseScreen(g.ctx)
	g.ctx = nil
}
