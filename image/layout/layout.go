// Package layout describes how an image is striped across backing objects.
//
// The actual striping/extent arithmetic is, per design, an external
// collaborator (the image-level splitter owns it); this package only
// defines the shape callers depend on and a trivial default for images
// that are not striped across multiple objects per extent.
package layout

import "github.com/in-han/objimage/image/extent"

// Layout carries the object size and striping parameters for an image.
type Layout struct {
	ObjectSize  uint64
	StripeUnit  uint64
	StripeCount uint64
}

// Striper maps an object-local byte range to one or more byte ranges in
// image-global coordinates. Implementations may interleave a single
// object's bytes across the image when StripeCount > 1; the engine never
// performs this arithmetic itself, it only consumes the result.
type Striper interface {
	ExtentToFile(objectNo uint64, off, length int64) []extent.Extent
}

// SimpleStriper implements Striper for the unstriped case (StripeCount==1):
// object-local coordinates translate directly to a single image-global
// extent. This is the default used when no richer striping module is
// wired in.
type SimpleStriper struct {
	ObjectSize uint64
}

// ExtentToFile implements Striper.
func (s SimpleStriper) ExtentToFile(objectNo uint64, off, length int64) []extent.Extent {
	if length <= 0 {
		return nil
	}
	imageOff := int64(objectNo*s.ObjectSize) + off
	return []extent.Extent{{Offset: imageOff, Length: length}}
}
