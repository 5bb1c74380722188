package docio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"golang.org/x/image/tiff"
)

// TIFF tag and type constants used while walking IFDs. The stdlib-adjacent
// codec decodes one image per call, so multi-page containers are handled
// here by walking the IFD chain directly.
const (
	tagStripOffsets = 273
	tagXResolution  = 282
	tagYResolution  = 283
	tagTileOffsets  = 324

	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// tiffTypeSizes maps TIFF field types to their byte widths
var tiffTypeSizes = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// maxTIFFPages bounds the IFD walk against cyclic or corrupt chains
const maxTIFFPages = 4096

// tiffByteOrder reads the container's byte order from its header
func tiffByteOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated TIFF header")
	}
	switch string(data[0:2]) {
	case "II":
		return binary.LittleEndian, nil
	case "MM":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}
}

// ifdOffsets walks the IFD chain and returns the offset of every page's IFD
func ifdOffsets(data []byte, bo binary.ByteOrder) ([]uint32, error) {
	var offsets []uint32

	offset := bo.Uint32(data[4:8])
	for offset != 0 {
		if len(offsets) >= maxTIFFPages {
			return nil, fmt.Errorf("TIFF IFD chain exceeds %d pages", maxTIFFPages)
		}
		if int(offset)+2 > len(data) {
			return nil, fmt.Errorf("IFD offset %d beyond file end", offset)
		}
		offsets = append(offsets, offset)

		entryCount := int(bo.Uint16(data[offset : offset+2]))
		next := int(offset) + 2 + 12*entryCount
		if next+4 > len(data) {
			return nil, fmt.Errorf("truncated IFD at offset %d", offset)
		}
		offset = bo.Uint32(data[next : next+4])
	}

	if len(offsets) == 0 {
		return nil, fmt.Errorf("TIFF file has no pages")
	}
	return offsets, nil
}

// loadTIFF decodes every page of a TIFF container. Each page is decoded
// by re-pointing a copy's first-IFD offset at that page's IFD, since the
// codec only ever reads the first IFD.
func (l *Loader) loadTIFF(data []byte) (*Document, error) {
	bo, err := tiffByteOrder(data)
	if err != nil {
		return nil, err
	}

	offsets, err := ifdOffsets(data, bo)
	if err != nil {
		return nil, err
	}

	pages := make([]image.Image, 0, len(offsets))
	for i, ifd := range offsets {
		buf := make([]byte, len(data))
		copy(buf, data)
		bo.PutUint32(buf[4:8], ifd)

		img, err := tiff.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TIFF page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}

	doc := &Document{
		Pages: pages,
		Metadata: Metadata{
			DPI:       tiffDPI(data, bo, offsets[0]),
			Grayscale: isGrayscale(pages[0]),
		},
	}
	l.logger.WithFields("pages", len(pages), "dpi", doc.Metadata.DPI).Debug("Loaded TIFF document")
	return doc, nil
}

// tiffDPI reads the XResolution rational from the given IFD, or 0
func tiffDPI(data []byte, bo binary.ByteOrder, ifd uint32) int {
	entryCount := int(bo.Uint16(data[ifd : ifd+2]))
	for e := 0; e < entryCount; e++ {
		at := int(ifd) + 2 + 12*e
		if at+12 > len(data) {
			return 0
		}
		tag := bo.Uint16(data[at : at+2])
		typ := bo.Uint16(data[at+2 : at+4])
		if tag != tagXResolution || typ != typeRational {
			continue
		}
		off := int(bo.Uint32(data[at+8 : at+12]))
		if off+8 > len(data) {
			return 0
		}
		num := bo.Uint32(data[off : off+4])
		den := bo.Uint32(data[off+4 : off+8])
		if den == 0 {
			return 0
		}
		return int(num / den)
	}
	return 0
}

// saveTIFF encodes the document as a multi-page TIFF. Pages are encoded
// standalone and then merged: each page's bytes are appended whole and
// every absolute offset inside its IFD is rebased, with the IFDs chained
// through their next-IFD pointers.
func (l *Loader) saveTIFF(doc *Document) ([]byte, error) {
	parts := make([][]byte, doc.PageCount())
	for i, page := range doc.Pages {
		img := page
		if doc.Metadata.Grayscale {
			img = toGray(page)
		}

		var buf bytes.Buffer
		opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
		if err := tiff.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		parts[i] = buf.Bytes()
	}

	// The codec writes little-endian containers; the merged file keeps
	// that order.
	le := binary.LittleEndian

	out := make([]byte, 8)
	copy(out[0:2], "II")
	le.PutUint16(out[2:4], 42)

	bases := make([]uint32, len(parts))
	firstIFDs := make([]uint32, len(parts))
	for i, part := range parts {
		bases[i] = uint32(len(out))
		firstIFDs[i] = le.Uint32(part[4:8])
		out = append(out, part...)
	}

	for i := range parts {
		ifd := bases[i] + firstIFDs[i]
		if err := rebaseIFD(out, le, ifd, bases[i], doc.Metadata.DPI); err != nil {
			return nil, fmt.Errorf("failed to rebase page %d: %w", i+1, err)
		}

		entryCount := int(le.Uint16(out[ifd : ifd+2]))
		nextPtr := int(ifd) + 2 + 12*entryCount
		if i < len(parts)-1 {
			le.PutUint32(out[nextPtr:nextPtr+4], bases[i+1]+firstIFDs[i+1])
		} else {
			le.PutUint32(out[nextPtr:nextPtr+4], 0)
		}
	}

	le.PutUint32(out[4:8], bases[0]+firstIFDs[0])

	l.logger.WithFields("pages", len(parts), "bytes", len(out)).Debug("Saved TIFF document")
	return out, nil
}

// rebaseIFD shifts every absolute offset in one embedded page's IFD by
// base: out-of-line value pointers, strip and tile data offsets, and — when
// a target DPI is known — the resolution rationals themselves.
func rebaseIFD(out []byte, bo binary.ByteOrder, ifd, base uint32, dpi int) error {
	if int(ifd)+2 > len(out) {
		return fmt.Errorf("IFD offset %d beyond buffer", ifd)
	}
	entryCount := int(bo.Uint16(out[ifd : ifd+2]))

	for e := 0; e < entryCount; e++ {
		at := int(ifd) + 2 + 12*e
		if at+12 > len(out) {
			return fmt.Errorf("truncated IFD entry %d", e)
		}

		tag := bo.Uint16(out[at : at+2])
		typ := bo.Uint16(out[at+2 : at+4])
		count := int(bo.Uint32(out[at+4 : at+8]))

		size, ok := tiffTypeSizes[typ]
		if !ok {
			return fmt.Errorf("unknown TIFF field type %d", typ)
		}
		total := size * count

		valueAt := at + 8
		if total > 4 {
			// Out-of-line value: the value field is a pointer into the
			// embedded part.
			off := bo.Uint32(out[at+8 : at+12])
			bo.PutUint32(out[at+8:at+12], off+base)
			valueAt = int(off + base)
		}

		switch tag {
		case tagStripOffsets, tagTileOffsets:
			// The values themselves are absolute data offsets.
			for k := 0; k < count; k++ {
				switch typ {
				case typeLong:
					pos := valueAt + 4*k
					v := bo.Uint32(out[pos : pos+4])
					bo.PutUint32(out[pos:pos+4], v+base)
				case typeShort:
					pos := valueAt + 2*k
					v := uint32(bo.Uint16(out[pos:pos+2])) + base
					if v > 0xFFFF {
						return fmt.Errorf("strip offset overflows SHORT after rebase")
					}
					bo.PutUint16(out[pos:pos+2], uint16(v))
				default:
					return fmt.Errorf("unexpected offset field type %d", typ)
				}
			}
		case tagXResolution, tagYResolution:
			if dpi > 0 && typ == typeRational && count == 1 {
				bo.PutUint32(out[valueAt:valueAt+4], uint32(dpi))
				bo.PutUint32(out[valueAt+4:valueAt+8], 1)
			}
		}
	}

	return nil
}
