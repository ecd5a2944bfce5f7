package npy

// ArchiveOptions configures how arrays are written into an NPZ archive.
//
//   - CopyBufferSize: the chunk size of the pulls the archive sink issues
//     against the entry's element stream
//   - Stored: write entries uncompressed (zip Store) instead of Deflate;
//     stored entries can later be loaded with a direct seek instead of a
//     decompressing re-read
//
// Zero values mean "use the default"; see defaultArchiveOptions.
type ArchiveOptions struct {
	CopyBufferSize int
	Stored         bool
}

func defaultArchiveOptions() ArchiveOptions {
	return ArchiveOptions{
		CopyBufferSize: 32 * 1024,
	}
}

// ArchiveOption mutates ArchiveOptions for a single archive save.
type ArchiveOption func(*ArchiveOptions)

// WithStoredEntries writes archive entries uncompressed.
func WithStoredEntries() ArchiveOption {
	return func(o *ArchiveOptions) { o.Stored = true }
}

// WithCopyBufferSize sets the pull chunk size used when streaming an entry.
func WithCopyBufferSize(n int) ArchiveOption {
	return func(o *ArchiveOptions) {
		if n > 0 {
			o.CopyBufferSize = n
		}
	}
}
