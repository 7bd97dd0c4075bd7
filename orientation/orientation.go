// Package orientation resolves embedded EXIF orientation metadata into the
// canonical rotate/flip pair used by the transform pipeline.
package orientation

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/FlepTheFlabbergasted/ngx-image-cropper/core"
)

// EXIF is the raw orientation flag (tag 0x0112) as stored in an image file.
type EXIF int

const (
	Unspecified EXIF = 0
	Normal      EXIF = 1
	Mirror      EXIF = 2
	Rotate180   EXIF = 3
	Rotate180M  EXIF = 4
	Rotate90M   EXIF = 5
	Rotate90    EXIF = 6
	Rotate270M  EXIF = 7
	Rotate270   EXIF = 8
)

// Transform maps the eight standard EXIF codes to quarter turns plus a
// horizontal mirror applied before rotation.  Unspecified or out-of-range
// values map to the identity.
func (o EXIF) Transform() core.OrientationTransform {
	switch o {
	case Mirror:
		return core.OrientationTransform{Rotate: 0, Flip: true}
	case Rotate180:
		return core.OrientationTransform{Rotate: 2, Flip: false}
	case Rotate180M:
		return core.OrientationTransform{Rotate: 2, Flip: true}
	case Rotate90M:
		return core.OrientationTransform{Rotate: 1, Flip: true}
	case Rotate90:
		return core.OrientationTransform{Rotate: 1, Flip: false}
	case Rotate270M:
		return core.OrientationTransform{Rotate: 3, Flip: true}
	case Rotate270:
		return core.OrientationTransform{Rotate: 3, Flip: false}
	}
	return core.OrientationTransform{}
}

// Resolve parses the orientation tag from raw image bytes.  When the decoder
// already applies orientation to pixels (decoderApplied), the identity
// transform is returned: applying the metadata again would double-transform.
// Absent or unparseable metadata also yields the identity: orientation
// correctness is best-effort and never fails a load.
func Resolve(data []byte, decoderApplied bool) core.OrientationTransform {
	if decoderApplied {
		return core.OrientationTransform{}
	}
	return Read(bytes.NewReader(data)).Transform()
}

// Read extracts the EXIF orientation flag from the JPEG byte stream in r.
// Any parse failure returns Unspecified.
func Read(r io.Reader) EXIF {
	const (
		markerSOI      = 0xffd8
		markerAPP1     = 0xffe1
		exifHeader     = 0x45786966
		byteOrderBE    = 0x4d4d
		byteOrderLE    = 0x4949
		orientationTag = 0x0112
	)

	var soi uint16
	if err := binary.Read(r, binary.BigEndian, &soi); err != nil {
		return Unspecified
	}
	if soi != markerSOI {
		return Unspecified // not a JPEG stream
	}

	// Walk segments until the APP1 marker.
	for {
		var marker, size uint16
		if err := binary.Read(r, binary.BigEndian, &marker); err != nil {
			return Unspecified
		}
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return Unspecified
		}
		if marker>>8 != 0xff {
			return Unspecified // invalid marker
		}
		if marker == markerAPP1 {
			break
		}
		if size < 2 {
			return Unspecified
		}
		if _, err := io.CopyN(io.Discard, r, int64(size-2)); err != nil {
			return Unspecified
		}
	}

	var header uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return Unspecified
	}
	if header != exifHeader {
		return Unspecified
	}
	if _, err := io.CopyN(io.Discard, r, 2); err != nil {
		return Unspecified
	}

	var (
		byteOrderTag uint16
		byteOrder    binary.ByteOrder
	)
	if err := binary.Read(r, binary.BigEndian, &byteOrderTag); err != nil {
		return Unspecified
	}
	switch byteOrderTag {
	case byteOrderBE:
		byteOrder = binary.BigEndian
	case byteOrderLE:
		byteOrder = binary.LittleEndian
	default:
		return Unspecified
	}
	if _, err := io.CopyN(io.Discard, r, 2); err != nil {
		return Unspecified
	}

	var offset uint32
	if err := binary.Read(r, byteOrder, &offset); err != nil {
		return Unspecified
	}
	if offset < 8 {
		return Unspecified
	}
	if _, err := io.CopyN(io.Discard, r, int64(offset-8)); err != nil {
		return Unspecified
	}

	var numTags uint16
	if err := binary.Read(r, byteOrder, &numTags); err != nil {
		return Unspecified
	}

	for i := 0; i < int(numTags); i++ {
		var tag uint16
		if err := binary.Read(r, byteOrder, &tag); err != nil {
			return Unspecified
		}
		if tag != orientationTag {
			if _, err := io.CopyN(io.Discard, r, 10); err != nil {
				return Unspecified
			}
			continue
		}
		if _, err := io.CopyN(io.Discard, r, 6); err != nil {
			return Unspecified
		}
		var val uint16
		if err := binary.Read(r, byteOrder, &val); err != nil {
			return Unspecified
		}
		if val < 1 || val > 8 {
			return Unspecified
		}
		return EXIF(val)
	}
	return Unspecified // missing orientation tag
}
