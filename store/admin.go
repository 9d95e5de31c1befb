package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/embeddings"
)

var ErrCollectionNotFound = errors.New("collection not found")

// Admin creates, opens and manages collections. It also serves the /db chat
// command, which is why it speaks in user-facing sentences there.
type Admin struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *logrus.Logger
}

type CollectionInfo struct {
	Name   string
	Chunks int
}

func NewAdmin(pool *pgxpool.Pool, embedder embeddings.Embedder, logger *logrus.Logger) *Admin {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Admin{pool: pool, embedder: embedder, logger: logger}
}

func (a *Admin) Open(ctx context.Context, name string) (*PgCollection, error) {
	var id uuid.UUID
	err := a.pool.QueryRow(ctx, "SELECT id FROM collections WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up collection: %w", err)
	}
	return &PgCollection{pool: a.pool, embedder: a.embedder, id: id, name: name}, nil
}

func (a *Admin) Create(ctx context.Context, name string) (*PgCollection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}

	id := uuid.New()
	_, err := a.pool.Exec(ctx,
		"INSERT INTO collections (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", id, name,
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	// The insert may have been a no-op for an existing name; resolve the id.
	return a.Open(ctx, name)
}

func (a *Admin) List(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := a.pool.Query(ctx, `
        SELECT col.name, COUNT(ch.id)
        FROM collections col
        LEFT JOIN chunks ch ON ch.collection_id = col.id
        GROUP BY col.name
        ORDER BY col.name
    `)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	infos := make([]CollectionInfo, 0)
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Chunks); err != nil {
			return nil, fmt.Errorf("scan collection row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (a *Admin) Delete(ctx context.Context, name string) error {
	tag, err := a.pool.Exec(ctx, "DELETE FROM collections WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

func (a *Admin) Rename(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("new collection name cannot be empty")
	}
	tag, err := a.pool.Exec(ctx, "UPDATE collections SET name = $2 WHERE name = $1", oldName, newName)
	if err != nil {
		return fmt.Errorf("rename collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, oldName)
	}
	return nil
}

// HandleCommand serves the /db chat mode. The returned collection is non-nil
// only when the active collection should be switched.
func (a *Admin) HandleCommand(ctx context.Context, message string, current Collection) (string, Collection, error) {
	fields := strings.Fields(message)

	sub := ""
	if len(fields) > 0 {
		sub = strings.ToLower(fields[0])
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch sub {
	case "", "list":
		infos, err := a.List(ctx)
		if err != nil {
			return "", nil, err
		}
		if len(infos) == 0 {
			return "No collections exist yet. Use `/db new <name>` to create one.", nil, nil
		}
		var sb strings.Builder
		sb.WriteString("Available collections:\n")
		for _, info := range infos {
			marker := " "
			if current != nil && info.Name == current.Name() {
				marker = "*"
			}
			fmt.Fprintf(&sb, "%s %s (%d chunks)\n", marker, info.Name, info.Chunks)
		}
		return sb.String(), nil, nil

	case "use":
		if arg == "" {
			return "Usage: /db use <collection name>", nil, nil
		}
		col, err := a.Open(ctx, arg)
		if err != nil {
			if errors.Is(err, ErrCollectionNotFound) {
				return fmt.Sprintf("Collection %q does not exist. Use `/db list` to see available collections.", arg), nil, nil
			}
			return "", nil, err
		}
		return fmt.Sprintf("Switched to collection %q.", arg), col, nil

	case "new":
		if arg == "" {
			return "Usage: /db new <collection name>", nil, nil
		}
		col, err := a.Create(ctx, arg)
		if err != nil {
			return "", nil, err
		}
		a.logger.WithField("collection", arg).Info("created collection")
		return fmt.Sprintf("Created and switched to collection %q.", arg), col, nil

	case "delete":
		if arg == "" {
			return "Usage: /db delete <collection name>", nil, nil
		}
		if current != nil && arg == current.Name() {
			return "Cannot delete the active collection. Switch to another collection first.", nil, nil
		}
		if err := a.Delete(ctx, arg); err != nil {
			if errors.Is(err, ErrCollectionNotFound) {
				return fmt.Sprintf("Collection %q does not exist.", arg), nil, nil
			}
			return "", nil, err
		}
		return fmt.Sprintf("Deleted collection %q.", arg), nil, nil

	case "rename":
		if arg == "" {
			return "Usage: /db rename <new name>", nil, nil
		}
		if current == nil {
			return "No active collection to rename.", nil, nil
		}
		if err := a.Rename(ctx, current.Name(), arg); err != nil {
			return "", nil, err
		}
		col, err := a.Open(ctx, arg)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Renamed collection %q to %q.", current.Name(), arg), col, nil

	default:
		return "Unknown /db subcommand. Available: list, use <name>, new <name>, delete <name>, rename <new name>.", nil, nil
	}
}
