// Package packager turns a remote repository into a zip archive ready for the build service.
package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

const (
	repoDir     = "repo"
	archiveName = "source.zip"
)

// Cloner fetches a repository into dir.
type Cloner interface {
	Clone(ctx context.Context, dir, url, branch string) error
}

// GitCloner makes shallow clones with go-git.
type GitCloner struct{}

func (GitCloner) Clone(ctx context.Context, dir, url, branch string) error {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	return err
}

type Options struct {
	DeploymentID string
	// Branch is cloned instead of the remote HEAD when set.
	Branch string
}

// Archive is a packaged repository on local disk. Release removes it.
type Archive struct {
	Path string
	Size int64

	dir  string
	once sync.Once
}

func (a *Archive) Open() (*os.File, error) {
	return os.Open(a.Path)
}

func (a *Archive) Release() error {
	var err error
	a.once.Do(func() {
		err = os.RemoveAll(a.dir)
	})
	return err
}

type Packager struct {
	cloner       Cloner
	workDir      string
	cloneTimeout time.Duration
	log          *zap.Logger
}

func New(cloner Cloner, workDir string, cloneTimeout time.Duration, log *zap.Logger) *Packager {
	if cloner == nil {
		cloner = GitCloner{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Packager{cloner: cloner, workDir: workDir, cloneTimeout: cloneTimeout, log: log}
}

// Package clones url, adds any missing deploy descriptors and zips the result.
// On error nothing is left on disk.
func (p *Packager) Package(ctx context.Context, url string, opts Options) (archive *Archive, err error) {
	dir, err := os.MkdirTemp(p.workDir, fmt.Sprintf("launcher-%s-*", opts.DeploymentID))
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	repoPath := filepath.Join(dir, repoDir)
	cloneCtx := ctx
	if p.cloneTimeout > 0 {
		var cancel context.CancelFunc
		cloneCtx, cancel = context.WithTimeout(ctx, p.cloneTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.cloner.Clone(cloneCtx, repoPath, url, opts.Branch); err != nil {
		return nil, fmt.Errorf("git clone failed: %w", err)
	}
	p.log.Debug("repository cloned",
		zap.String("deployment_id", opts.DeploymentID),
		zap.Duration("took", time.Since(start)))

	injected, err := injectDescriptors(repoPath)
	if err != nil {
		return nil, err
	}
	if len(injected) > 0 {
		p.log.Info("injected deploy descriptors",
			zap.String("deployment_id", opts.DeploymentID),
			zap.Strings("files", injected))
	}

	zipPath := filepath.Join(dir, archiveName)
	size, skipped, err := zipDir(repoPath, zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to archive repository: %w", err)
	}
	if len(skipped) > 0 {
		p.log.Warn("skipped entries that are neither files nor links",
			zap.String("deployment_id", opts.DeploymentID),
			zap.Strings("paths", skipped))
	}

	return &Archive{Path: zipPath, Size: size, dir: dir}, nil
}

// zipDir writes every regular file under root into a zip at dst, named
// relative to root. Symlinks are stored as links. The .git directory is
// skipped, as is anything that is neither a file nor a link; those entries
// are returned.
func zipDir(root, dst string) (size int64, skipped []string, err error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		mode := d.Type()
		if !mode.IsRegular() && mode&fs.ModeSymlink == 0 {
			skipped = append(skipped, filepath.ToSlash(rel))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if mode&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			hdr.Method = zip.Store
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, filepath.ToSlash(target))
			return err
		}

		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if walkErr != nil {
		zw.Close()
		return 0, nil, walkErr
	}
	if err := zw.Close(); err != nil {
		return 0, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, nil, err
	}
	return info.Size(), skipped, nil
}
