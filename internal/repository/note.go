package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/models"
)

// uniqueViolation is the Postgres error code raised when an insert hits the
// (user_id, access_key_hash) constraint
const uniqueViolation = "23505"

var (
	// ErrDuplicateNote reports that the user already owns this note. The
	// unique constraint is the authoritative duplicate guard; the pre-insert
	// existence check is only a fast path.
	ErrDuplicateNote = errors.New("note already registered for this user")

	// ErrNotFound reports that no note matched the id and owner
	ErrNotFound = errors.New("note not found")
)

// NoteRepository defines persistence for notes and their items
type NoteRepository interface {
	Exists(ctx context.Context, userID int64, accessKeyHash string) (bool, error)
	CreateWithItems(ctx context.Context, note *models.Note) error
	ListByUser(ctx context.Context, userID int64, limit, offset int, market string) ([]models.Note, error)
	GetByID(ctx context.Context, noteID, userID int64) (*models.Note, error)
	Delete(ctx context.Context, noteID, userID int64) error
	Stats(ctx context.Context, userID int64) (*models.DashboardStats, error)
}

type noteRepository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(pool *pgxpool.Pool, logger *logrus.Logger) NoteRepository {
	return &noteRepository{pool: pool, logger: logger}
}

func (r *noteRepository) Exists(ctx context.Context, userID int64, accessKeyHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notes WHERE user_id = $1 AND access_key_hash = $2)`,
		userID, accessKeyHash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CreateWithItems inserts the note and its items in one transaction. The note
// and item IDs and creation timestamps are filled in on success.
func (r *noteRepository) CreateWithItems(ctx context.Context, note *models.Note) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO notes (user_id, access_key_hash, market_name, market_cnpj, market_address,
		                    emission_date, total_value, total_taxes)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		 RETURNING id, created_at`,
		note.UserID, note.AccessKeyHash, note.MarketName, note.MarketCNPJ,
		note.MarketAddress, note.EmissionDate, note.TotalValue, note.TotalTaxes,
	).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateNote
		}
		return err
	}

	for i := range note.Items {
		item := &note.Items[i]
		item.NoteID = note.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO products (note_id, barcode, name, quantity, unit, unit_price,
			                       total_price, category)
			 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
			 RETURNING id, created_at`,
			item.NoteID, item.Barcode, item.Name, item.Quantity, item.Unit,
			item.UnitPrice, item.TotalPrice, item.Category,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *noteRepository) ListByUser(ctx context.Context, userID int64, limit, offset int, market string) ([]models.Note, error) {
	query := `SELECT id, user_id, access_key_hash, market_name,
	                 COALESCE(market_cnpj, ''), COALESCE(market_address, ''),
	                 emission_date, total_value, total_taxes, created_at
	          FROM notes
	          WHERE user_id = $1`
	args := []interface{}{userID}

	if market != "" {
		query += ` AND market_name ILIKE '%' || $2 || '%'`
		args = append(args, market)
	}
	query += ` ORDER BY emission_date DESC, id DESC`
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.Note
	ids := make([]int64, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.AccessKeyHash, &n.MarketName,
			&n.MarketCNPJ, &n.MarketAddress, &n.EmissionDate, &n.TotalValue,
			&n.TotalTaxes, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Items = []models.NoteItem{}
		notes = append(notes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return []models.Note{}, nil
	}

	if err := r.attachItems(ctx, notes, ids); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepository) attachItems(ctx context.Context, notes []models.Note, ids []int64) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, note_id, COALESCE(barcode, ''), name, quantity, unit,
		        unit_price, total_price, category, created_at
		 FROM products
		 WHERE note_id = ANY($1)
		 ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byNote := make(map[int64]int, len(notes))
	for i := range notes {
		byNote[notes[i].ID] = i
	}

	for rows.Next() {
		var item models.NoteItem
		if err := rows.Scan(&item.ID, &item.NoteID, &item.Barcode, &item.Name,
			&item.Quantity, &item.Unit, &item.UnitPrice, &item.TotalPrice,
			&item.Category, &item.CreatedAt); err != nil {
			return err
		}
		if i, ok := byNote[item.NoteID]; ok {
			notes[i].Items = append(notes[i].Items, item)
		}
	}
	return rows.Err()
}

func (r *noteRepository) GetByID(ctx context.Context, noteID, userID int64) (*models.Note, error) {
	var n models.Note
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, access_key_hash, market_name,
		        COALESCE(market_cnpj, ''), COALESCE(market_address, ''),
		        emission_date, total_value, total_taxes, created_at
		 FROM notes
		 WHERE id = $1 AND user_id = $2`,
		noteID, userID,
	).Scan(&n.ID, &n.UserID, &n.AccessKeyHash, &n.MarketName, &n.MarketCNPJ,
		&n.MarketAddress, &n.EmissionDate, &n.TotalValue, &n.TotalTaxes, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	n.Items = []models.NoteItem{}
	notes := []models.Note{n}
	if err := r.attachItems(ctx, notes, []int64{n.ID}); err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// Delete removes a note; its products go with it via ON DELETE CASCADE
func (r *noteRepository) Delete(ctx context.Context, noteID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notes WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *noteRepository) Stats(ctx context.Context, userID int64) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		CategorySpending: []models.CategorySpending{},
	}

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(n.total_value), 0), COUNT(DISTINCT n.id), COUNT(p.id)
		 FROM notes n
		 LEFT JOIN products p ON p.note_id = n.id
		 WHERE n.user_id = $1`,
		userID,
	).Scan(&stats.TotalSpent, &stats.NotesCount, &stats.ProductsCount)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.category, SUM(p.total_price)
		 FROM products p
		 JOIN notes n ON n.id = p.note_id
		 WHERE n.user_id = $1
		 GROUP BY p.category
		 ORDER BY SUM(p.total_price) DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cs models.CategorySpending
		if err := rows.Scan(&cs.Category, &cs.Total); err != nil {
			return nil, err
		}
		stats.CategorySpending = append(stats.CategorySpending, cs)
	}
	return stats, rows.Err()
}
