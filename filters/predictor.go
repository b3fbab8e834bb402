package filters

import (
	"fmt"

	"github.com/wudi/pdftext/ir/raw"
)

// applyPredictor undoes the TIFF (2) or PNG (10-15) predictor named in the
// decode parameters of a Flate or LZW stream.
func applyPredictor(data []byte, params *raw.Dict) ([]byte, error) {
	predictor := intParam(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)
	if colors < 1 || columns < 1 || (bpc != 1 && bpc != 2 && bpc != 4 && bpc != 8 && bpc != 16) {
		return nil, fmt.Errorf("invalid predictor parameters colors=%d bpc=%d columns=%d", colors, bpc, columns)
	}
	rowLen := (colors*bpc*columns + 7) / 8
	bpp := (colors*bpc + 7) / 8
	switch {
	case predictor == 2:
		return tiffPredictor(data, rowLen, colors, bpc), nil
	case predictor >= 10:
		return pngPredictor(data, rowLen, bpp)
	}
	return nil, fmt.Errorf("unsupported predictor %d", predictor)
}

func pngPredictor(data []byte, rowLen, bpp int) ([]byte, error) {
	stride := rowLen + 1
	out := make([]byte, 0, len(data)/stride*rowLen+rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off < len(data); off += stride {
		end := off + stride
		if end > len(data) {
			end = len(data)
		}
		filter := data[off]
		row := make([]byte, rowLen)
		copy(row, data[off+1:end])
		n := end - off - 1
		for i := 0; i < n; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch filter {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", filter)
			}
		}
		out = append(out, row[:n]...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// tiffPredictor adds each sample to the sample of the same component to
// its left, row by row.
func tiffPredictor(data []byte, rowLen, colors, bpc int) []byte {
	out := append([]byte(nil), data...)
	for off := 0; off+rowLen <= len(out); off += rowLen {
		row := out[off : off+rowLen]
		switch bpc {
		case 8:
			for i := colors; i < rowLen; i++ {
				row[i] += row[i-colors]
			}
		case 16:
			for i := 2 * colors; i+1 < rowLen; i += 2 {
				v := uint16(row[i])<<8 | uint16(row[i+1])
				p := uint16(row[i-2*colors])<<8 | uint16(row[i-2*colors+1])
				v += p
				row[i], row[i+1] = byte(v>>8), byte(v)
			}
		default:
			samples := rowLen * 8 / bpc
			mask := byte(1<<bpc - 1)
			get := func(i int) byte {
				shift := 8 - bpc - (i*bpc)%8
				return row[i*bpc/8] >> shift & mask
			}
			set := func(i int, v byte) {
				shift := 8 - bpc - (i*bpc)%8
				idx := i * bpc / 8
				row[idx] = row[idx]&^(mask<<shift) | (v&mask)<<shift
			}
			for i := colors; i < samples; i++ {
				set(i, get(i)+get(i-colors))
			}
		}
	}
	return out
}
