package preset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/whiteroom/multisong"
)

// SQLRepository stores presets in the presets table of a SQLite database.
// The schema is created by shared.RunMigrations. The state is stored in the
// same YAML form that the file repository uses.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Load(ctx context.Context, id string) (multisong.Preset, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM presets WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return multisong.Preset{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if err != nil {
		return multisong.Preset{}, fmt.Errorf("failed to load preset: %w", err)
	}
	return Unmarshal([]byte(data))
}

// Save inserts the preset, or replaces the stored one with the same id.
func (r *SQLRepository) Save(ctx context.Context, p multisong.Preset) error {
	if p.ID() == "" {
		return fmt.Errorf("saving preset %q: empty id", p.Name())
	}
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO presets (id, name, song_count, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			song_count = excluded.song_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			data = excluded.data
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID(),
		p.Name(),
		len(p.State().Songs),
		p.Timestamp().UTC(),
		time.Now().UTC(),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]Info, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, song_count, created_at FROM presets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Name, &info.Songs, &info.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan preset: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	sortInfos(infos)
	return infos, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return nil
}
