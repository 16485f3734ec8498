package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Manifest describes one archive's contents, written alongside the data
// file inside the tarball so a restore can verify integrity before it
// overwrites a live database.
type Manifest struct {
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// Info describes one archive already sitting in the object store.
type Info struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

// sourceDB is the subset of *sqlitestore.DB a Service backs up. Declared
// locally (rather than importing sqlitestore) so tests can back the
// Service with an in-memory *sql.DB directly.
type sourceDB interface {
	Conn() *sql.DB
}

// Service archives a sqlitestore database to an S3-compatible bucket on
// a schedule and rotates old archives (grounded on the teacher's
// tiered-backup/R2-upload split). It has no restore operation.
type Service struct {
	db        sourceDB
	dbName    string
	stagingDir string
	s3        s3Client
	log       zerolog.Logger
}

// New returns a Service that archives db (named dbName for manifest and
// archive-key purposes) into cfg's bucket, staging working files under
// stagingDir.
func New(ctx context.Context, db sourceDB, dbName, stagingDir string, cfg S3Config, log zerolog.Logger) (*Service, error) {
	adapter, err := newS3Adapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:         db,
		dbName:     dbName,
		stagingDir: stagingDir,
		s3:         adapter,
		log:        log.With().Str("component", "snapshot_service").Logger(),
	}, nil
}

// CreateAndUpload takes a consistent SQLite backup via VACUUM INTO,
// wraps it with a checksummed manifest in a tar.gz archive, and uploads
// the archive to the configured bucket.
func (s *Service) CreateAndUpload(ctx context.Context) error {
	start := time.Now()
	s.log.Info().Msg("starting snapshot")

	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(s.stagingDir)

	dbPath := filepath.Join(s.stagingDir, s.dbName+".db")
	if err := s.vacuumInto(ctx, dbPath); err != nil {
		return fmt.Errorf("vacuum into backup: %w", err)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("stat backup: %w", err)
	}
	checksum, err := checksumFile(dbPath)
	if err != nil {
		return fmt.Errorf("checksum backup: %w", err)
	}

	manifest := Manifest{
		Timestamp: time.Now().UTC(),
		Database:  s.dbName,
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	manifestPath := filepath.Join(s.stagingDir, "manifest.json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	archiveName := archiveKey(s.dbName, time.Now())
	archivePath := filepath.Join(s.stagingDir, archiveName)
	if err := createArchive(archivePath, dbPath, manifestPath); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()
	archiveInfo, err := archiveFile.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	if err := s.s3.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("snapshot completed")
	return nil
}

func (s *Service) vacuumInto(ctx context.Context, dest string) error {
	_, err := s.db.Conn().ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest))
	return err
}

// ListArchives lists every archive in the bucket for this database,
// newest first.
func (s *Service) ListArchives(ctx context.Context) ([]Info, error) {
	prefix := s.dbName + "-"
	objects, err := s.s3.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	now := time.Now()
	out := make([]Info, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseArchiveTimestamp(s.dbName, obj.Key)
		if !ok {
			continue
		}
		out = append(out, Info{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// RotateOld deletes archives older than retention, always keeping at
// least minKeep of the most recent ones regardless of age (grounded on
// the teacher's RotateOldBackups: a retentionDays of 0 means keep
// forever).
func (s *Service) RotateOld(ctx context.Context, retention time.Duration, minKeep int) error {
	archives, err := s.ListArchives(ctx)
	if err != nil {
		return err
	}
	if len(archives) <= minKeep {
		return nil
	}

	var cutoff time.Time
	if retention > 0 {
		cutoff = time.Now().Add(-retention)
	}

	deleted := 0
	for i, a := range archives {
		if i < minKeep {
			continue
		}
		if retention == 0 {
			continue
		}
		if a.Timestamp.Before(cutoff) {
			if err := s.s3.Delete(ctx, a.Key); err != nil {
				s.log.Warn().Err(err).Str("key", a.Key).Msg("failed to delete old archive")
				continue
			}
			deleted++
		}
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(archives)-deleted).Msg("archive rotation completed")
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func createArchive(archivePath string, members ...string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gw := gzip.NewWriter(archiveFile)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, member := range members {
		if err := addFileToArchive(tw, member, filepath.Base(member)); err != nil {
			return fmt.Errorf("add %s: %w", member, err)
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func archiveKey(dbName string, at time.Time) string {
	return fmt.Sprintf("%s-%s.tar.gz", dbName, at.Format("2006-01-02-150405"))
}

func parseArchiveTimestamp(dbName, key string) (time.Time, bool) {
	prefix := dbName + "-"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".tar.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".tar.gz")
	ts, err := time.Parse("2006-01-02-150405", raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
