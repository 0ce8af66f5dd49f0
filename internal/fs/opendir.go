package fs

// Opendir returns a stream over names, a listing of dir collected ahead of
// time. Entries come out in the order of names, each carrying the metadata
// fsys reports for the joined path. The slice is copied; the caller may
// reuse it.
//
// A failed metadata lookup is returned by the Read that hit it and the name
// is not retried.
func Opendir(fsys Stater, dir string, names []string, opts ...DirOption) *Dir {
	pending := make([]string, len(names))
	copy(pending, names)

	cursor := 0
	next := func() (*Dirent, error) {
		if cursor >= len(pending) {
			return nil, nil
		}
		name := pending[cursor]
		cursor++

		info, err := fsys.Stat(fsys.Join(dir, name))
		if err != nil {
			return nil, err
		}
		return &Dirent{Name: name, Info: info}, nil
	}

	return NewDir(dir, next, opts...)
}
