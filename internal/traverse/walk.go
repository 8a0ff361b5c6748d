package traverse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/deepwalk/deepwalk/internal/format"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/deepwalk/deepwalk/internal/resource"
	"github.com/jellydator/ttlcache/v3"
)

// visitResource dispatches a filesystem/URL [resource.Resource] — the
// directory/normal-file/archive-file/compressed-file branch of the
// traversal state machine. realPath is the physical path used for the
// cycle guard; it may differ from nodePath (which carries !/% markers).
func (e *Engine) visitResource(ctx context.Context, nodePath, realPath string, depth int, parent *node.PropertyMap, res resource.Resource, visitor Visitor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if res.Kind() == resource.KindDirectory || res.Kind() == resource.KindFile {
		if !e.seen.tryMark(realPath) {
			return nil
		}
	}

	info, err := res.Stat(ctx)
	if err != nil {
		return e.reportRecoverable(nodePath, err)
	}

	if res.Kind() == resource.KindDirectory {
		return e.visitDirectory(ctx, nodePath, depth, parent, res.(resource.DirResource), info, visitor)
	}

	return e.visitLeafResource(ctx, nodePath, depth, parent, res, info, visitor)
}

func (e *Engine) visitDirectory(ctx context.Context, nodePath string, depth int, parent *node.PropertyMap, dir resource.DirResource, info resource.Info, visitor Visitor) error {
	var prune atomic.Bool

	props := parent.WithValues(map[string]node.Value{
		"type":  node.StringOf(string(node.TypeDirectory)),
		"path":  node.StringOf(nodePath),
		"name":  node.StringOf(path.Base(nodePath)),
		"depth": node.LongOf(int64(depth)),
		"mode":  node.LongOf(int64(info.Mode.Perm())),
	})

	n := &node.Node{Props: props, Type: node.TypeDirectory, Path: nodePath, Name: path.Base(nodePath), Depth: depth, Prune: &prune}

	if !e.DescendantsFirst {
		if err := e.invoke(ctx, n, depth, visitor); err != nil {
			return err
		}
	}

	if !n.Pruned() && depth != e.MaxDepth {
		if err := e.visitDirectoryChildren(ctx, nodePath, dir, depth, props, visitor); err != nil {
			return err
		}
	}

	if e.DescendantsFirst {
		return e.invoke(ctx, n, depth, visitor)
	}

	return nil
}

func (e *Engine) visitDirectoryChildren(ctx context.Context, nodePath string, dir resource.DirResource, depth int, props *node.PropertyMap, visitor Visitor) error {
	names, err := dir.ListChildren(e.Escape)
	if err != nil {
		return e.reportRecoverable(nodePath, err)
	}

	for _, name := range names {
		childPath := joinDirPath(nodePath, name)
		childReal := dir.Child(name)

		childRes, err := classifyChildResource(childReal, e.Comparator)
		if err != nil {
			if perr := e.reportRecoverable(childPath, err); perr != nil {
				return perr
			}

			continue
		}

		if err := e.visitResource(ctx, childPath, childReal, depth+1, props, childRes, visitor); err != nil {
			if perr := e.reportRecoverable(childPath, err); perr != nil {
				return perr
			}
		}
	}

	return nil
}

// classifyChildResource stats a directory child to decide whether it is
// itself a [resource.DirResource] or a [resource.FileResource].
func classifyChildResource(realPath string, cmp resource.Comparator) (resource.Resource, error) {
	fr := resource.FileResource{Path: realPath}

	info, err := fr.Stat(context.Background())
	if err != nil {
		return nil, err
	}

	if info.Mode.IsDir() {
		return resource.DirResource{Path: realPath, Comparator: cmp}, nil
	}

	return fr, nil
}

func joinDirPath(parent, name string) string {
	if parent == "" {
		return name
	}

	return strings.TrimSuffix(parent, "/") + "/" + name
}

// visitLeafResource classifies a regular file or URL resource and
// dispatches to the normal/archive/compressed branch.
func (e *Engine) visitLeafResource(ctx context.Context, nodePath string, depth int, parent *node.PropertyMap, res resource.Resource, info resource.Info, visitor Visitor) error {
	rc, err := res.Open(ctx)
	if err != nil {
		return e.reportRecoverable(nodePath, err)
	}
	defer rc.Close()

	peek := format.NewPeekReader(rc)

	class, err := format.Classify(nodePath, peek)
	if err != nil {
		return e.reportRecoverable(nodePath, err)
	}

	baseType := baseTypeFor(res, class)

	overrides := map[string]node.Value{
		"type":  node.StringOf(string(baseType)),
		"path":  node.StringOf(nodePath),
		"name":  node.StringOf(path.Base(nodePath)),
		"depth": node.LongOf(int64(depth)),
		"size":  node.LongOf(info.Size),
		"mode":  node.LongOf(int64(info.Mode.Perm())),
	}
	if info.HasModTime {
		overrides["lastModifiedDate"] = node.DateOf(info.ModTime)
	}

	switch class.Kind {
	case format.ClassArchive:
		overrides["archiveFormat"] = node.StringOf(string(class.Archive))
	case format.ClassCompressed:
		overrides["compressionFormat"] = node.StringOf(string(class.Compressed))
	}

	props := parent.WithValues(overrides)
	if class.Kind == format.ClassNormal {
		props = props.WithOverrides(map[string]node.Producer{
			"inputStream": func() (node.Value, error) { return node.StreamOf(peek.Reader()), nil },
		})
	}

	var prune atomic.Bool

	n := &node.Node{Props: props, Type: baseType, Path: nodePath, Name: path.Base(nodePath), Depth: depth}
	if class.Kind == format.ClassArchive {
		n.Prune = &prune
	}

	if !e.DescendantsFirst {
		if err := e.invoke(ctx, n, depth, visitor); err != nil {
			return err
		}
	}

	if !n.Pruned() && depth != e.MaxDepth && e.LookInto(formatNameOf(class), nodePath) {
		if err := e.descendLeaf(ctx, nodePath, depth, props, class, peek.Reader(), info.Size, visitor); err != nil {
			if perr := e.reportRecoverable(nodePath, err); perr != nil {
				return perr
			}
		}
	}

	if e.DescendantsFirst {
		return e.invoke(ctx, n, depth, visitor)
	}

	return nil
}

func (e *Engine) descendLeaf(ctx context.Context, nodePath string, depth int, props *node.PropertyMap, class format.Classification, stream io.Reader, size int64, visitor Visitor) error {
	switch class.Kind {
	case format.ClassArchive:
		return e.descendArchive(ctx, nodePath, depth, props, class.Archive, stream, size, visitor)
	case format.ClassCompressed:
		return e.descendCompressed(ctx, nodePath, depth, props, class.Compressed, stream, visitor)
	default:
		return nil
	}
}

func baseTypeFor(res resource.Resource, class format.Classification) node.Type {
	if res.Kind() != resource.KindURL {
		switch class.Kind {
		case format.ClassArchive:
			return node.TypeArchiveFile
		case format.ClassCompressed:
			return node.TypeCompressedFile
		default:
			return node.TypeNormalFile
		}
	}

	scheme := "resource"
	if u, ok := res.(resource.URLResource); ok {
		if parsed, err := url.Parse(u.URL); err == nil && parsed.Scheme != "" {
			scheme = parsed.Scheme + "-resource"
		}
	}

	switch class.Kind {
	case format.ClassArchive:
		return node.Type("archive-" + scheme)
	case format.ClassCompressed:
		return node.Type("compressed-" + scheme)
	default:
		return node.Type("normal-" + scheme)
	}
}

func formatNameOf(class format.Classification) string {
	switch class.Kind {
	case format.ClassArchive:
		return string(class.Archive)
	case format.ClassCompressed:
		return string(class.Compressed)
	default:
		return ""
	}
}

// descendArchive iterates the entries of an archive, recursing into each
// via visitStream. Zip needs random access, so its bytes are buffered
// (and cached, keyed by nodePath, in e.archiveCache); tar is read
// strictly sequentially, unbuffered.
func (e *Engine) descendArchive(ctx context.Context, nodePath string, depth int, parent *node.PropertyMap, f format.ArchiveFormat, stream io.Reader, size int64, visitor Visitor) error {
	if err := e.fdLimiter.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fd budget: %w", err)
	}
	defer e.fdLimiter.Release(1)

	e.Metrics.OpenArchives.Add(1)
	e.Metrics.TotalOpened.Add(1)
	defer func() {
		e.Metrics.OpenArchives.Add(-1)
		e.Metrics.TotalClosed.Add(1)
	}()

	var (
		ra   io.ReaderAt
		tarR io.Reader = stream
	)

	switch f {
	case format.Zip:
		data, err := e.bufferZip(nodePath, stream)
		if err != nil {
			return err
		}

		ra = bytes.NewReader(data)
		size = int64(len(data))
	default:
		ra = bytes.NewReader(nil)
	}

	ar, err := format.OpenArchive(f, ra, size, tarR)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer ar.Close()

	for {
		entry, err := ar.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if perr := e.reportRecoverable(nodePath, fmt.Errorf("archive entry: %w", err)); perr != nil {
				return perr
			}

			return nil
		}

		entryPath := nodePath + "!" + entry.Name

		if err := e.visitArchiveEntry(ctx, entryPath, depth+1, parent, entry, visitor); err != nil {
			if perr := e.reportRecoverable(entryPath, err); perr != nil {
				return perr
			}
		}
	}
}

// bufferZip reads stream fully into memory, consulting/populating
// e.archiveCache by nodePath so a second traversal of the same archive
// path (a repeated scan root, or a future random-access caller) avoids
// re-reading the underlying resource.
func (e *Engine) bufferZip(nodePath string, stream io.Reader) ([]byte, error) {
	if item := e.archiveCache.Get(nodePath); item != nil {
		e.Metrics.ArchiveCacheHits.Add(1)

		return item.Value().data, nil
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("buffer zip: %w", err)
	}

	e.Metrics.ArchiveCacheMiss.Add(1)
	e.archiveCache.Set(nodePath, &cachedArchive{data: data}, ttlcache.DefaultTTL)

	return data, nil
}

func (e *Engine) visitArchiveEntry(ctx context.Context, entryPath string, depth int, parent *node.PropertyMap, entry format.Entry, visitor Visitor) error {
	if entry.IsDir {
		props := parent.WithValues(map[string]node.Value{
			"type":  node.StringOf(string(node.TypeDirectoryEntry)),
			"path":  node.StringOf(entryPath),
			"name":  node.StringOf(path.Base(entryPath)),
			"depth": node.LongOf(int64(depth)),
			"size":  node.LongOf(0), // directory entries are fixed at 0, not -1
		})
		n := &node.Node{Props: props, Type: node.TypeDirectoryEntry, Path: entryPath, Name: path.Base(entryPath), Depth: depth}

		return e.invoke(ctx, n, depth, visitor)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	size := entry.Size
	attached := false

	overrides := map[string]node.Producer{
		"path":  constProducer(node.StringOf(entryPath)),
		"name":  constProducer(node.StringOf(path.Base(entryPath))),
		"depth": constProducer(node.LongOf(int64(depth))),
		"size": func() (node.Value, error) {
			if size >= 0 {
				return node.LongOf(size), nil
			}
			if attached {
				return node.Value{}, errSizeUnavailable
			}

			n, err := io.Copy(io.Discard, rc)
			if err != nil {
				return node.Value{}, fmt.Errorf("drain for size: %w", err)
			}

			return node.LongOf(n), nil
		},
		"inputStream": func() (node.Value, error) {
			attached = true

			return node.StreamOf(rc), nil
		},
	}
	if !entry.Modified.IsZero() {
		overrides["lastModifiedDate"] = constProducer(node.DateOf(entry.Modified))
	}
	if entry.HasCRC {
		overrides["crc"] = constProducer(node.LongOf(int64(entry.CRC32)))
	}

	childParent := parent.WithOverrides(overrides)

	return e.visitStream(ctx, entryPath, rc, depth, childParent, visitor)
}

// visitStream handles a node reached via ScanStream: either the content
// is itself a nested archive/compressed stream (re-classify and recurse
// again) or it is a final textual leaf. Type promotion
// applies only here, never to filesystem-resident nodes.
func (e *Engine) visitStream(ctx context.Context, nodePath string, r io.Reader, depth int, parent *node.PropertyMap, visitor Visitor) error {
	peek := format.NewPeekReader(r)

	class, err := format.Classify(nodePath, peek)
	if err != nil {
		return err
	}

	parentType := node.Type(parent.GetString("type"))
	childType := node.Promoted(classWord(class), parentType)

	overrides := map[string]node.Producer{
		"type": constProducer(node.StringOf(string(childType))),
	}

	switch class.Kind {
	case format.ClassArchive:
		overrides["archiveFormat"] = constProducer(node.StringOf(string(class.Archive)))
	case format.ClassCompressed:
		overrides["compressionFormat"] = constProducer(node.StringOf(string(class.Compressed)))
	default:
		overrides["inputStream"] = func() (node.Value, error) { return node.StreamOf(peek.Reader()), nil }
	}

	props := parent.WithOverrides(overrides)

	var prune atomic.Bool

	n := &node.Node{Props: props, Type: childType, Path: nodePath, Name: parent.GetString("name"), Depth: depth}
	if class.Kind == format.ClassArchive {
		n.Prune = &prune
	}

	if !e.DescendantsFirst {
		if err := e.invoke(ctx, n, depth, visitor); err != nil {
			return err
		}
	}

	if !n.Pruned() && depth != e.MaxDepth {
		var descendErr error

		switch class.Kind {
		case format.ClassArchive:
			descendErr = e.descendArchive(ctx, nodePath, depth, props, class.Archive, peek.Reader(), -1, visitor)
		case format.ClassCompressed:
			descendErr = e.descendCompressed(ctx, nodePath, depth, props, class.Compressed, peek.Reader(), visitor)
		}

		if descendErr != nil {
			return descendErr
		}
	}

	if e.DescendantsFirst {
		return e.invoke(ctx, n, depth, visitor)
	}

	return nil
}

// descendCompressed decompresses into a single virtual child: name/path
// get a trailing "%", size is unknown (-1).
func (e *Engine) descendCompressed(ctx context.Context, nodePath string, depth int, parent *node.PropertyMap, f format.CompressedFormat, stream io.Reader, visitor Visitor) error {
	if err := e.fdLimiter.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fd budget: %w", err)
	}
	defer e.fdLimiter.Release(1)

	cr, err := format.OpenCompressed(f, stream)
	if err != nil {
		return fmt.Errorf("open compressed: %w", err)
	}
	defer cr.Close()

	childPath := nodePath + "%"
	childParent := parent.WithValues(map[string]node.Value{
		"size": node.LongOf(-1),
		"path": node.StringOf(childPath),
		"name": node.StringOf(parent.GetString("name") + "%"),
	})

	return e.visitStream(ctx, childPath, cr, depth+1, childParent, visitor)
}

func classWord(class format.Classification) string {
	switch class.Kind {
	case format.ClassArchive:
		return "archive"
	case format.ClassCompressed:
		return "compressed"
	default:
		return "normal"
	}
}

func constProducer(v node.Value) node.Producer {
	return func() (node.Value, error) { return v, nil }
}

// invoke suppresses the visitor call below MinDepth, but never
// suppresses recursion: MinDepth only gates what is reported, not what
// is walked.
func (e *Engine) invoke(ctx context.Context, n *node.Node, depth int, visitor Visitor) error {
	if depth < e.MinDepth {
		return nil
	}

	return visitor.Visit(ctx, n)
}

// errSizeUnavailable is returned by an archive entry's lazy "size"
// producer once a consumer has already attached to "inputStream": the
// stream cannot be drained twice, so size is left undefined in that
// ordering.
var errSizeUnavailable = errors.New("size unavailable: a downstream consumer already attached to inputStream")
