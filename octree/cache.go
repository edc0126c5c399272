package octree

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/voxelray/voxelray/palette"
)

// The cache file is the spec'd little-endian layout (palette, levels, default
// visualization level, masks, children, payloads) written through a zstd
// stream. Anything that fails to read or decode is treated as a stale cache
// by callers, never as a hard failure.

const maxCachePayload = 1 << 28 // sanity bound on a single node's stream

// WriteCache persists a linearized tree and its palette to path, replacing
// any existing file.
func WriteCache(path string, lin *Linear, pal *palette.Palette) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating cache file")
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		err = multierr.Combine(errors.Wrap(err, "creating cache compressor"), f.Close())
		return err
	}
	defer func() {
		err = multierr.Combine(err, zw.Close(), f.Close())
	}()

	w := bufio.NewWriter(zw)
	if err := writeCacheBody(w, lin, pal); err != nil {
		return err
	}
	return w.Flush()
}

func writeCacheBody(w io.Writer, lin *Linear, pal *palette.Palette) error {
	if err := pal.Write(w); err != nil {
		return err
	}
	for _, v := range []int32{lin.Levels, lin.DefaultLevel} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Wrap(err, "writing cache metadata")
		}
	}

	if err := binary.Write(w, binary.LittleEndian, int32(len(lin.Masks))); err != nil {
		return errors.Wrap(err, "writing mask count")
	}
	if _, err := w.Write(lin.Masks); err != nil {
		return errors.Wrap(err, "writing masks")
	}

	if err := binary.Write(w, binary.LittleEndian, int32(len(lin.Children))); err != nil {
		return errors.Wrap(err, "writing children count")
	}
	if err := binary.Write(w, binary.LittleEndian, lin.Children); err != nil {
		return errors.Wrap(err, "writing children")
	}

	if err := binary.Write(w, binary.LittleEndian, int32(len(lin.Payloads))); err != nil {
		return errors.Wrap(err, "writing payload count")
	}
	for _, payload := range lin.Payloads {
		if err := binary.Write(w, binary.LittleEndian, int32(len(payload))); err != nil {
			return errors.Wrap(err, "writing payload length")
		}
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, "writing payload")
		}
	}
	return nil
}

// ReadCache loads a tree and palette previously written by WriteCache.
func ReadCache(path string) (*Linear, *palette.Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening cache file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating cache decompressor")
	}
	defer zr.Close()

	return readCacheBody(bufio.NewReader(zr))
}

func readCacheBody(r io.Reader) (*Linear, *palette.Palette, error) {
	pal, err := palette.Read(r)
	if err != nil {
		return nil, nil, err
	}

	lin := &Linear{}
	for _, v := range []*int32{&lin.Levels, &lin.DefaultLevel} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, nil, errors.Wrap(err, "reading cache metadata")
		}
	}
	if lin.Levels < 1 || lin.Levels > maxLevels {
		return nil, nil, errors.Errorf("invalid cache level count %d", lin.Levels)
	}
	if lin.DefaultLevel < 0 || lin.DefaultLevel > lin.Levels {
		return nil, nil, errors.Errorf("invalid cache visualization level %d", lin.DefaultLevel)
	}

	var maskCount int32
	if err := binary.Read(r, binary.LittleEndian, &maskCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading mask count")
	}
	if maskCount < 1 {
		return nil, nil, errors.Errorf("invalid cache mask count %d", maskCount)
	}
	lin.Masks = make([]uint8, maskCount)
	if _, err := io.ReadFull(r, lin.Masks); err != nil {
		return nil, nil, errors.Wrap(err, "reading masks")
	}

	var childCount int32
	if err := binary.Read(r, binary.LittleEndian, &childCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading children count")
	}
	if childCount != maskCount*8 {
		return nil, nil, errors.Errorf("cache has %d child slots for %d nodes", childCount, maskCount)
	}
	lin.Children = make([]int32, childCount)
	if err := binary.Read(r, binary.LittleEndian, lin.Children); err != nil {
		return nil, nil, errors.Wrap(err, "reading children")
	}

	var payloadCount int32
	if err := binary.Read(r, binary.LittleEndian, &payloadCount); err != nil {
		return nil, nil, errors.Wrap(err, "reading payload count")
	}
	if payloadCount != maskCount {
		return nil, nil, errors.Errorf("cache has %d payloads for %d nodes", payloadCount, maskCount)
	}
	lin.Payloads = make([][]byte, payloadCount)
	for i := range lin.Payloads {
		var n int32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, errors.Wrap(err, "reading payload length")
		}
		if n < 0 || n > maxCachePayload {
			return nil, nil, errors.Errorf("invalid cache payload length %d", n)
		}
		if n == 0 {
			continue
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, errors.Wrap(err, "reading payload")
		}
		lin.Payloads[i] = payload
	}
	return lin, pal, nil
}

// CacheFresh reports whether the cache at cachePath is at least as new as the
// source asset at sourcePath. A missing or unreadable cache is stale.
func CacheFresh(sourcePath, cachePath string) bool {
	src, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	cache, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	return !cache.ModTime().Before(src.ModTime())
}
