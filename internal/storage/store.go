package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

// Order selects how List sorts notes.
type Order string

// Listing orders.
const (
	OrderTitle    Order = "title"
	OrderModified Order = "modified"
)

// Front matter keys written by the store.
const (
	keyTitle   = "title"
	keyCreated = "created"
)

type entry struct {
	title    string
	file     string
	created  time.Time
	modified time.Time
}

// Store maps note titles to files. It keeps an in-memory catalog of the
// notes directory that is rebuilt by LoadAll; note bodies are always read
// from disk. Store is not safe for concurrent use.
type Store struct {
	fs     Provider
	logger *slog.Logger
	now    func() time.Time

	byKey  map[string]*entry // normalized title -> entry
	byFile map[string]string // lower-cased file name -> normalized title
	// skipped holds files left out by LoadAll. Their names stay taken so
	// that Create and Rename never write over them.
	skipped map[string]string // lower-cased file name -> file name
}

// NewStore creates a Store on top of p. A nil now defaults to time.Now.
func NewStore(p Provider, logger *slog.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fs:     p,
		logger: logger,
		now:    now,
		byKey:   make(map[string]*entry),
		byFile:  make(map[string]string),
		skipped: make(map[string]string),
	}
}

// LoadAll discards the catalog and reads every note from disk.
// Files whose title duplicates an earlier file (in name order) are skipped
// and their names reserved until the next LoadAll.
func (s *Store) LoadAll() ([]*models.Note, error) {
	files, err := s.fs.List()
	if err != nil {
		return nil, ioErr(err)
	}

	s.byKey = make(map[string]*entry, len(files))
	s.byFile = make(map[string]string, len(files))
	s.skipped = make(map[string]string)

	notes := make([]*models.Note, 0, len(files))
	for _, fi := range files {
		data, err := s.fs.Read(fi.Name)
		if err != nil {
			return nil, ioErr(err)
		}
		n := decode(fi, data)
		key := parser.Normalize(n.Title)
		if key == "" {
			s.logger.Warn("store: skipping note without title", slog.String("file", fi.Name))
			s.skipped[strings.ToLower(fi.Name)] = fi.Name
			continue
		}
		if prev, ok := s.byKey[key]; ok {
			s.logger.Warn("store: skipping duplicate title",
				slog.String("title", n.Title),
				slog.String("file", fi.Name),
				slog.String("kept", prev.file))
			s.skipped[strings.ToLower(fi.Name)] = fi.Name
			continue
		}
		s.register(key, &entry{title: n.Title, file: fi.Name, created: n.CreatedAt, modified: n.ModifiedAt})
		notes = append(notes, n)
	}
	return notes, nil
}

// Create writes a new note. It fails with ErrDuplicateTitle when the title
// exists (ignoring case) and ErrInvalidTitle when the title is unusable or
// its file name is taken.
func (s *Store) Create(title, body string) (*models.Note, error) {
	title = strings.TrimSpace(title)
	slug, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}
	key := parser.Normalize(title)
	if prev, ok := s.byKey[key]; ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrDuplicateTitle, prev.title)
	}
	file := FileName(slug)
	if err := s.fileFree(file); err != nil {
		return nil, err
	}

	created := s.now().UTC().Truncate(time.Second)
	fm := map[string]any{keyTitle: title, keyCreated: created.Format(time.RFC3339)}
	return s.write(key, &entry{title: title, file: file, created: created}, fm, body)
}

// Read returns the note with the given title (case-insensitive).
func (s *Store) Read(title string) (*models.Note, error) {
	e, err := s.lookup(title)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(e.file)
	if err != nil {
		return nil, ioErr(err)
	}
	n := decode(FileInfo{Name: e.file, ModTime: e.modified}, data)
	n.Title = e.title
	n.CreatedAt = e.created
	return n, nil
}

// Update replaces the body of an existing note, keeping its front matter.
func (s *Store) Update(title, body string) (*models.Note, error) {
	e, err := s.lookup(title)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.Read(e.file)
	if err != nil {
		return nil, ioErr(err)
	}
	fm := headerFor(parser.Parse(data).Frontmatter, e)
	return s.write(parser.Normalize(e.title), e, fm, body)
}

// Delete removes the note file.
func (s *Store) Delete(title string) error {
	e, err := s.lookup(title)
	if err != nil {
		return err
	}
	if err := s.fs.Delete(e.file); err != nil {
		return ioErr(err)
	}
	s.unregister(parser.Normalize(e.title), e)
	return nil
}

// Rename gives a note a new title and file name. Only the title key in its
// front matter changes; the body is untouched.
func (s *Store) Rename(oldTitle, newTitle string) (*models.Note, error) {
	e, err := s.lookup(oldTitle)
	if err != nil {
		return nil, err
	}
	newTitle = strings.TrimSpace(newTitle)
	slug, err := ValidateTitle(newTitle)
	if err != nil {
		return nil, err
	}
	oldKey, newKey := parser.Normalize(e.title), parser.Normalize(newTitle)
	if newKey != oldKey {
		if prev, ok := s.byKey[newKey]; ok {
			return nil, fmt.Errorf("%w: %q", apperr.ErrDuplicateTitle, prev.title)
		}
	}
	newFile := FileName(slug)
	sameFile := strings.EqualFold(newFile, e.file)
	if !sameFile {
		if err := s.fileFree(newFile); err != nil {
			return nil, err
		}
	} else {
		// Case-insensitive filesystems would alias the two names.
		newFile = e.file
	}

	data, err := s.fs.Read(e.file)
	if err != nil {
		return nil, ioErr(err)
	}
	res := parser.Parse(data)
	next := &entry{title: newTitle, file: newFile, created: e.created}
	fm := headerFor(res.Frontmatter, next)

	s.unregister(oldKey, e)
	n, err := s.write(newKey, next, fm, res.Body)
	if err != nil {
		s.register(oldKey, e)
		return nil, err
	}
	if sameFile {
		return n, nil
	}
	if err := s.fs.Delete(e.file); err != nil {
		// Undo the copy so the note keeps a single identity.
		if rmErr := s.fs.Delete(newFile); rmErr != nil {
			s.logger.Error("store: rename cleanup failed",
				slog.String("file", newFile), slog.String("error", rmErr.Error()))
		}
		s.unregister(newKey, next)
		s.register(oldKey, e)
		return nil, ioErr(err)
	}
	return n, nil
}

// Restore writes n back as given, front matter and creation time included.
// A note obtained from Read carries its file content, which is written back
// byte for byte. It is used to undo a delete or an update.
func (s *Store) Restore(n *models.Note) error {
	key := parser.Normalize(n.Title)
	file := n.File
	if file == "" {
		slug, err := ValidateTitle(n.Title)
		if err != nil {
			return err
		}
		file = FileName(slug)
	}
	if prev, ok := s.byKey[key]; ok && !strings.EqualFold(prev.file, file) {
		return fmt.Errorf("%w: %q", apperr.ErrDuplicateTitle, prev.title)
	}
	e := &entry{title: n.Title, file: file, created: n.CreatedAt}
	if n.Raw != nil {
		_, err := s.commit(key, e, n.Raw, n.Frontmatter, n.Body)
		return err
	}
	_, err := s.write(key, e, headerFor(n.Frontmatter, e), n.Body)
	return err
}

// List returns metadata for every note without bodies.
func (s *Store) List(order Order) []models.NoteMeta {
	out := make([]models.NoteMeta, 0, len(s.byKey))
	for _, e := range s.byKey {
		out = append(out, meta(e))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order == OrderModified && !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		ka, kb := parser.Normalize(a.Title), parser.Normalize(b.Title)
		if ka != kb {
			return ka < kb
		}
		return a.Title < b.Title
	})
	return out
}

// Title returns the stored display title for title, if the note exists.
func (s *Store) Title(title string) (string, bool) {
	e, ok := s.byKey[parser.Normalize(title)]
	if !ok {
		return "", false
	}
	return e.title, true
}

// Len returns the number of notes in the catalog.
func (s *Store) Len() int { return len(s.byKey) }

// Drifted reports whether the file's state on disk differs from what the
// catalog expects, i.e. someone other than this Store changed it.
func (s *Store) Drifted(name string) bool {
	if !IsNoteFile(name) {
		return false
	}
	key, known := s.byFile[strings.ToLower(name)]
	fi, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return known
		}
		return false
	}
	if !known {
		return true
	}
	return !s.byKey[key].modified.Equal(fi.ModTime)
}

func (s *Store) write(key string, e *entry, fm map[string]any, body string) (*models.Note, error) {
	data, err := parser.Compose(fm, body)
	if err != nil {
		return nil, err
	}
	return s.commit(key, e, data, fm, body)
}

// commit writes data to e's file and registers e under key.
func (s *Store) commit(key string, e *entry, data []byte, fm map[string]any, body string) (*models.Note, error) {
	if err := s.fs.Write(e.file, data); err != nil {
		return nil, ioErr(err)
	}
	e.modified = s.now()
	if fi, err := s.fs.Stat(e.file); err == nil {
		e.modified = fi.ModTime
	}
	s.register(key, e)
	return &models.Note{
		Title:       e.title,
		Body:        body,
		File:        e.file,
		Frontmatter: fm,
		Raw:         data,
		Checksum:    checksum.Sum(data),
		CreatedAt:   e.created,
		ModifiedAt:  e.modified,
	}, nil
}

// fileFree fails with ErrInvalidTitle when file belongs to a note or to a
// file skipped at load.
func (s *Store) fileFree(file string) error {
	lower := strings.ToLower(file)
	if other, ok := s.byFile[lower]; ok {
		return fmt.Errorf("%w: file name %s already used by %q", apperr.ErrInvalidTitle, file, s.byKey[other].title)
	}
	if name, ok := s.skipped[lower]; ok {
		return fmt.Errorf("%w: file name %s already used by unloaded file %s", apperr.ErrInvalidTitle, file, name)
	}
	return nil
}

func (s *Store) lookup(title string) (*entry, error) {
	e, ok := s.byKey[parser.Normalize(title)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrNotFound, strings.TrimSpace(title))
	}
	return e, nil
}

func (s *Store) register(key string, e *entry) {
	s.byKey[key] = e
	s.byFile[strings.ToLower(e.file)] = key
}

func (s *Store) unregister(key string, e *entry) {
	delete(s.byKey, key)
	delete(s.byFile, strings.ToLower(e.file))
}

// decode builds a Note from raw file content.
func decode(fi FileInfo, data []byte) *models.Note {
	res := parser.Parse(data)
	n := &models.Note{
		Title:       TitleFromSlug(strings.TrimSuffix(fi.Name, ".md")),
		Body:        res.Body,
		File:        fi.Name,
		Frontmatter: res.Frontmatter,
		Raw:         data,
		Checksum:    checksum.Sum(data),
		CreatedAt:   fi.ModTime,
		ModifiedAt:  fi.ModTime,
	}
	if t, ok := res.Frontmatter[keyTitle].(string); ok && strings.TrimSpace(t) != "" {
		n.Title = strings.TrimSpace(t)
	}
	if c, ok := parseTime(res.Frontmatter[keyCreated]); ok {
		n.CreatedAt = c
	}
	return n
}

// headerFor returns a copy of fm with the store-owned keys set from e.
func headerFor(fm map[string]any, e *entry) map[string]any {
	out := make(map[string]any, len(fm)+2)
	maps.Copy(out, fm)
	out[keyTitle] = e.title
	out[keyCreated] = e.created.UTC().Format(time.RFC3339)
	return out
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func meta(e *entry) models.NoteMeta {
	return models.NoteMeta{Title: e.title, File: e.file, CreatedAt: e.created, ModifiedAt: e.modified}
}

func ioErr(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrIOFailure, err)
}
