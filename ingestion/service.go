package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/knowledge"
	"github.com/nkwachiabel/docdocgo-core/store"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Service ingests local files into a collection and mirrors document metadata
// into the knowledge graph.
type Service struct {
	admin  *store.Admin
	graph  *knowledge.Store
	logger *logrus.Logger
}

func NewService(admin *store.Admin, graph *knowledge.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{admin: admin, graph: graph, logger: logger}
}

// IngestDirectory walks dir for supported files (.md, .txt, .pdf) and ingests
// each into the named collection, creating it if needed. A failed file is
// logged and skipped so one bad document does not abort the run.
func (s *Service) IngestDirectory(ctx context.Context, dir, collectionName string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}

	collection, err := s.admin.Create(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collectionName, err)
	}

	paths := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md", ".txt", ".pdf":
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk data directory: %w", err)
	}

	if len(paths) == 0 {
		s.logger.WithField("dir", dir).Warn("no ingestable files found")
		return nil
	}

	ingested := 0
	for _, path := range paths {
		if err := s.ingestFile(ctx, collection, dir, path); err != nil {
			s.logger.WithError(err).WithField("path", path).Error("ingest failed")
			continue
		}
		ingested++
	}

	s.logger.WithFields(logrus.Fields{
		"collection": collectionName,
		"files":      ingested,
	}).Info("ingestion complete")
	return nil
}

func (s *Service) ingestFile(ctx context.Context, collection *store.PgCollection, root, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	content, err := extractText(path, data)
	if err != nil {
		return err
	}

	title := ExtractTitle(content, filepath.Base(path))
	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	chunks := SplitText(content, defaultChunkSize, defaultChunkOverlap)
	if len(chunks) == 0 {
		s.logger.WithField("path", relPath).Warn("skipping empty document")
		return nil
	}

	docID, err := collection.UpsertDocument(ctx, relPath, title, hashHex)
	if err != nil {
		return err
	}

	entries := make([]store.Entry, len(chunks))
	for i, text := range chunks {
		entries[i] = store.Entry{
			Text:       text,
			Source:     relPath,
			DocumentID: docID,
			ChunkIndex: i,
		}
	}
	if err := collection.AddTexts(ctx, entries); err != nil {
		return err
	}

	if err := s.graph.SyncDocument(ctx, knowledge.Document{
		ID:         docID.String(),
		Collection: collection.Name(),
		Source:     relPath,
		Title:      title,
		SHA:        hashHex,
		ChunkCount: len(chunks),
	}); err != nil {
		return fmt.Errorf("sync knowledge graph: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":   relPath,
		"chunks": len(chunks),
	}).Info("ingested document")
	return nil
}

func extractText(path string, data []byte) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return string(data), nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// ExtractTitle returns the first markdown heading, or the first non-empty
// line, falling back to the given name.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
		return trimmed
	}
	return fallback
}
