package engine

// recropPixels re-expresses a layer buffer on a newWidth x newHeight canvas
// whose origin is (cropX, cropY) in the current document space. Pixels outside
// the old layer rectangle come out transparent.
func recropPixels(old []byte, oldWidth, oldHeight, layerX, layerY, cropX, cropY, newWidth, newHeight int) []byte {
	out := make([]byte, newWidth*newHeight*4)
	if len(old) < oldWidth*oldHeight*4 {
		return out
	}

	// Row spans are contiguous in both buffers, so copy per row rather than
	// per pixel.
	srcX0 := cropX - layerX
	nx0 := max(0, -srcX0)
	nx1 := min(newWidth, oldWidth-srcX0)
	if nx0 >= nx1 {
		return out
	}
	for ny := 0; ny < newHeight; ny++ {
		sy := cropY + ny - layerY
		if sy < 0 || sy >= oldHeight {
			continue
		}
		src := (sy*oldWidth + srcX0 + nx0) * 4
		dst := (ny*newWidth + nx0) * 4
		copy(out[dst:dst+(nx1-nx0)*4], old[src:src+(nx1-nx0)*4])
	}
	return out
}
