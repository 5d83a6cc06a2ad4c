package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"proptrack/internal/core"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// pgErr maps pgx errors onto the repository's sentinel errors.
func pgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) && pge.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Users

func (r *PostgresRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at`,
		username, email, passwordHash).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", pgErr(err))
	}
	return u, nil
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`,
		username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", pgErr(err))
	}
	return u, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", pgErr(err))
	}
	return u, nil
}

// Properties

func (r *PostgresRepository) ListProperties(ctx context.Context, userID int64) ([]PropertyWithCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.description, p.user_id, p.created_at,
		       (SELECT COUNT(*) FROM expenses e WHERE e.property_id = p.id),
		       (SELECT COUNT(*) FROM categories c WHERE c.property_id = p.id),
		       (SELECT COUNT(*) FROM debtors d WHERE d.property_id = p.id)
		FROM properties p
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var out []PropertyWithCounts
	for rows.Next() {
		var p PropertyWithCounts
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt,
			&p.ExpenseCount, &p.CategoryCount, &p.DebtorCount); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetProperty(ctx context.Context, userID, id int64) (core.Property, error) {
	var p core.Property
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, user_id, created_at FROM properties WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt)
	if err != nil {
		return core.Property{}, fmt.Errorf("get property: %w", pgErr(err))
	}
	return p, nil
}

func (r *PostgresRepository) GetPropertyDetail(ctx context.Context, userID, id int64) (PropertyDetail, error) {
	p, err := r.GetProperty(ctx, userID, id)
	if err != nil {
		return PropertyDetail{}, err
	}

	detail := PropertyDetail{Property: p}

	cats, err := r.ListCategories(ctx, id)
	if err != nil {
		return PropertyDetail{}, err
	}
	for _, c := range cats {
		detail.Categories = append(detail.Categories, c.Category)
	}

	detail.Debtors, err = r.ListDebtors(ctx, id)
	if err != nil {
		return PropertyDetail{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM expenses WHERE property_id = $1`, id).Scan(&detail.ExpenseCount)
	if err != nil {
		return PropertyDetail{}, fmt.Errorf("count expenses: %w", err)
	}

	return detail, nil
}

func (r *PostgresRepository) CreateProperty(ctx context.Context, p core.Property) (core.Property, error) {
	var out core.Property
	err := r.pool.QueryRow(ctx, `
		INSERT INTO properties (name, description, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, user_id, created_at`,
		p.Name, p.Description, p.UserID).
		Scan(&out.ID, &out.Name, &out.Description, &out.UserID, &out.CreatedAt)
	if err != nil {
		return core.Property{}, fmt.Errorf("create property: %w", pgErr(err))
	}
	slog.InfoContext(ctx, "Property created", "id", out.ID, "user_id", out.UserID)
	return out, nil
}

func (r *PostgresRepository) UpdateProperty(ctx context.Context, p core.Property) (core.Property, error) {
	var out core.Property
	err := r.pool.QueryRow(ctx, `
		UPDATE properties SET name = $1, description = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, name, description, user_id, created_at`,
		p.Name, p.Description, p.ID, p.UserID).
		Scan(&out.ID, &out.Name, &out.Description, &out.UserID, &out.CreatedAt)
	if err != nil {
		return core.Property{}, fmt.Errorf("update property: %w", pgErr(err))
	}
	return out, nil
}

func (r *PostgresRepository) DeleteProperty(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM properties WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Categories

func (r *PostgresRepository) ListCategories(ctx context.Context, propertyID int64) ([]CategoryWithCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.property_id,
		       (SELECT COUNT(*) FROM expenses e WHERE e.category_id = c.id)
		FROM categories c
		WHERE c.property_id = $1
		ORDER BY c.name ASC`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryWithCount
	for rows.Next() {
		var c CategoryWithCount
		if err := rows.Scan(&c.ID, &c.Name, &c.PropertyID, &c.ExpenseCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetCategory(ctx context.Context, propertyID, id int64) (core.Category, error) {
	var c core.Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, property_id FROM categories WHERE id = $1 AND property_id = $2`,
		id, propertyID).Scan(&c.ID, &c.Name, &c.PropertyID)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", pgErr(err))
	}
	return c, nil
}

func (r *PostgresRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var out core.Category
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, property_id)
		VALUES ($1, $2)
		RETURNING id, name, property_id`,
		c.Name, c.PropertyID).Scan(&out.ID, &out.Name, &out.PropertyID)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", pgErr(err))
	}
	return out, nil
}

func (r *PostgresRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	var out core.Category
	err := r.pool.QueryRow(ctx, `
		UPDATE categories SET name = $1
		WHERE id = $2 AND property_id = $3
		RETURNING id, name, property_id`,
		c.Name, c.ID, c.PropertyID).Scan(&out.ID, &out.Name, &out.PropertyID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", pgErr(err))
	}
	return out, nil
}

func (r *PostgresRepository) DeleteCategory(ctx context.Context, propertyID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM categories WHERE id = $1 AND property_id = $2`, id, propertyID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Expenses

const pgExpenseColumns = `e.id, e.date, e.amount_cents, e.description, e.category_id, c.name, e.property_id, e.receipt_path`

func (r *PostgresRepository) ListExpenses(ctx context.Context, propertyID int64, f ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + pgExpenseColumns + `
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.property_id = $1`
	args := []any{propertyID}

	if f.Start != nil {
		args = append(args, *f.Start)
		query += fmt.Sprintf(` AND e.date >= $%d`, len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		query += fmt.Sprintf(` AND e.date <= $%d`, len(args))
	}
	if f.CategoryID != 0 {
		args = append(args, f.CategoryID)
		query += fmt.Sprintf(` AND e.category_id = $%d`, len(args))
	}
	if f.Ascending {
		query += ` ORDER BY e.date ASC, e.id ASC`
	} else {
		query += ` ORDER BY e.date DESC, e.id DESC`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetExpense(ctx context.Context, propertyID, id int64) (core.Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgExpenseColumns+`
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.id = $1 AND e.property_id = $2`, id, propertyID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", pgErr(err))
	}
	return e, nil
}

func (r *PostgresRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (date, amount_cents, description, category_id, property_id, receipt_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.Date, e.Amount.Cents, e.Description, e.CategoryID, e.PropertyID, e.ReceiptPath).Scan(&id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", pgErr(err))
	}
	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"property_id", e.PropertyID,
		"amount_cents", e.Amount.Cents)
	return r.GetExpense(ctx, e.PropertyID, id)
}

func (r *PostgresRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses
		SET date = $1, amount_cents = $2, description = $3, category_id = $4,
		    receipt_path = $5, export_state = 'pending', version = version + 1
		WHERE id = $6 AND property_id = $7`,
		e.Date, e.Amount.Cents, e.Description, e.CategoryID, e.ReceiptPath, e.ID, e.PropertyID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", pgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return core.Expense{}, ErrNotFound
	}
	return r.GetExpense(ctx, e.PropertyID, e.ID)
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, propertyID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM expenses WHERE id = $1 AND property_id = $2`, id, propertyID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Debtors

func (r *PostgresRepository) ListDebtors(ctx context.Context, propertyID int64) ([]core.Debtor, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, property_id FROM debtors WHERE property_id = $1 ORDER BY name ASC`,
		propertyID)
	if err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var out []core.Debtor
	for rows.Next() {
		var d core.Debtor
		if err := rows.Scan(&d.ID, &d.Name, &d.PropertyID); err != nil {
			return nil, fmt.Errorf("scan debtor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		payments, err := r.ListPayments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Payments = payments
	}
	return out, nil
}

func (r *PostgresRepository) GetDebtor(ctx context.Context, propertyID, id int64) (core.Debtor, error) {
	var d core.Debtor
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, property_id FROM debtors WHERE id = $1 AND property_id = $2`,
		id, propertyID).Scan(&d.ID, &d.Name, &d.PropertyID)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("get debtor: %w", pgErr(err))
	}
	d.Payments, err = r.ListPayments(ctx, d.ID)
	if err != nil {
		return core.Debtor{}, err
	}
	return d, nil
}

func (r *PostgresRepository) GetDebtorForUser(ctx context.Context, userID, debtorID int64) (core.Debtor, error) {
	var d core.Debtor
	err := r.pool.QueryRow(ctx, `
		SELECT d.id, d.name, d.property_id
		FROM debtors d
		JOIN properties p ON p.id = d.property_id
		WHERE d.id = $1 AND p.user_id = $2`, debtorID, userID).
		Scan(&d.ID, &d.Name, &d.PropertyID)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("get debtor for user: %w", pgErr(err))
	}
	d.Payments, err = r.ListPayments(ctx, d.ID)
	if err != nil {
		return core.Debtor{}, err
	}
	return d, nil
}

func (r *PostgresRepository) CreateDebtor(ctx context.Context, d core.Debtor) (core.Debtor, error) {
	var out core.Debtor
	err := r.pool.QueryRow(ctx, `
		INSERT INTO debtors (name, property_id)
		VALUES ($1, $2)
		RETURNING id, name, property_id`,
		d.Name, d.PropertyID).Scan(&out.ID, &out.Name, &out.PropertyID)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("create debtor: %w", pgErr(err))
	}
	out.Payments = []core.Payment{}
	return out, nil
}

func (r *PostgresRepository) UpdateDebtor(ctx context.Context, d core.Debtor) (core.Debtor, error) {
	var out core.Debtor
	err := r.pool.QueryRow(ctx, `
		UPDATE debtors SET name = $1
		WHERE id = $2 AND property_id = $3
		RETURNING id, name, property_id`,
		d.Name, d.ID, d.PropertyID).Scan(&out.ID, &out.Name, &out.PropertyID)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("update debtor: %w", pgErr(err))
	}
	out.Payments, err = r.ListPayments(ctx, out.ID)
	if err != nil {
		return core.Debtor{}, err
	}
	return out, nil
}

func (r *PostgresRepository) DeleteDebtor(ctx context.Context, propertyID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM debtors WHERE id = $1 AND property_id = $2`, id, propertyID)
	if err != nil {
		return fmt.Errorf("delete debtor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Payments

func (r *PostgresRepository) ListPayments(ctx context.Context, debtorID int64) ([]core.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, amount_cents, date, notes, debtor_id FROM payments WHERE debtor_id = $1 ORDER BY date DESC, id DESC`,
		debtorID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.Amount.Cents, &p.Date, &p.Notes, &p.DebtorID); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetPaymentForUser(ctx context.Context, userID, paymentID int64) (core.Payment, error) {
	var p core.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT pay.id, pay.amount_cents, pay.date, pay.notes, pay.debtor_id
		FROM payments pay
		JOIN debtors d ON d.id = pay.debtor_id
		JOIN properties prop ON prop.id = d.property_id
		WHERE pay.id = $1 AND prop.user_id = $2`, paymentID, userID).
		Scan(&p.ID, &p.Amount.Cents, &p.Date, &p.Notes, &p.DebtorID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment for user: %w", pgErr(err))
	}
	return p, nil
}

func (r *PostgresRepository) CreatePayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (amount_cents, date, notes, debtor_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Amount.Cents, p.Date, p.Notes, p.DebtorID).Scan(&p.ID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", pgErr(err))
	}
	return p, nil
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET amount_cents = $1, date = $2, notes = $3 WHERE id = $4`,
		p.Amount.Cents, p.Date, p.Notes, p.ID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("update payment: %w", pgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return core.Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *PostgresRepository) DeletePayment(ctx context.Context, userID, paymentID int64) error {
	if _, err := r.GetPaymentForUser(ctx, userID, paymentID); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, paymentID); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

// Ledger export queue

func (r *PostgresRepository) GetExpenseByID(ctx context.Context, id int64) (core.Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pgExpenseColumns+`
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.id = $1`, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", pgErr(err))
	}
	return e, nil
}

func (r *PostgresRepository) GetPendingExportExpenses(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, version, created_at FROM expenses
		WHERE export_state = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export expenses: %w", err)
	}
	defer rows.Close()

	var out []PendingExport
	for rows.Next() {
		var p PendingExport
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE expenses SET export_state = 'exported' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as exported", "id", id)
	return nil
}

func (r *PostgresRepository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE expenses SET export_state = 'error' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with export error", "id", id)
	return nil
}
