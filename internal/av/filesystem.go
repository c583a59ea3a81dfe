package av

// FilesystemManager turns local paths into upload candidates.
type FilesystemManager interface {
	// Collect resolves rawPath. A regular file yields one candidate. A
	// directory yields its regular files, descending into subdirectories when
	// recursive is set. Ignored files are skipped.
	Collect(rawPath string, recursive bool) ([]RawFile, error)
}
