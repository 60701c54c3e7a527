package lasgo

import (
	"bytes"
	"io"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// Stream is the generic reader/seeker this module's codecs operate
// against — either a tiledb.VFS-backed file handle or an in-memory byte
// buffer. Callers shouldn't care whether bytes come from disk, an
// object store, or memory.
type Stream interface {
	io.Reader
	io.Seeker
}

// GenericStream optionally slurps the whole handle into a bytes.Reader
// up front (useful for small files or when random access must avoid
// repeated VFS round trips); otherwise it returns the handle unchanged
// for true streaming.
func GenericStream(handle Stream, size uint64, inMemory bool) (Stream, error) {
	if !inMemory {
		return handle, nil
	}
	buffer := make([]byte, size)
	if _, err := io.ReadFull(handle, buffer); err != nil {
		return nil, err
	}
	return bytes.NewReader(buffer), nil
}

// TileDBStream opens uri for reading through a tiledb.VFS handle, the
// source capability behind read(source, options) when source names a
// path TileDB's VFS can resolve (local, S3, GCS, Azure, per TileDB's own
// URI scheme dispatch). The caller owns the returned closer.
type TileDBStream struct {
	Stream
	handle *tiledb.VFSfh
	vfs    *tiledb.VFS
	ctx    *tiledb.Context
	config *tiledb.Config
}

// OpenTileDBStream opens uri for read-only access, optionally buffering
// the whole file in memory up front (inMemory).
func OpenTileDBStream(uri string, configURI string, inMemory bool) (*TileDBStream, error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, err
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		config.Free()
		return nil, err
	}

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		ctx.Free()
		config.Free()
		return nil, err
	}

	handle, err := vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		vfs.Free()
		ctx.Free()
		config.Free()
		return nil, err
	}

	size, err := vfs.FileSize(uri)
	if err != nil {
		handle.Close()
		vfs.Free()
		ctx.Free()
		config.Free()
		return nil, err
	}

	stream, err := GenericStream(handle, size, inMemory)
	if err != nil {
		handle.Close()
		vfs.Free()
		ctx.Free()
		config.Free()
		return nil, err
	}

	return &TileDBStream{Stream: stream, handle: handle, vfs: vfs, ctx: ctx, config: config}, nil
}

// Close releases the underlying VFS handle, context, and config in
// dependency order.
func (t *TileDBStream) Close() error {
	err := t.handle.Close()
	t.vfs.Free()
	t.ctx.Free()
	t.config.Free()
	return err
}

// Tell reports the current stream position, a thin wrapper around
// Seek(0, io.SeekCurrent).
func Tell(s Stream) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}
