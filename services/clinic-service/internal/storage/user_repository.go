package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/wltan/clinicdesk/libs/db"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
)

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, COALESCE(phone, ''), password_hash, role, is_temporary, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.IsTemporary, &u.CreatedAt)
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role, is_temporary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role, user.IsTemporary).
		Scan(&user.ID, &user.CreatedAt)
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user *model.User) error {
	return tx.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role, is_temporary)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, user.Name, user.Email, user.Phone, user.PasswordHash, user.Role, user.IsTemporary).
		Scan(&user.ID, &user.CreatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

// UpdateContact refreshes the details a returning patient supplied on the
// booking form.
func (r *UserRepository) UpdateContact(ctx context.Context, tx pgx.Tx, id, name, phone string) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET name = $2, phone = $3
		WHERE id = $1
	`, id, name, phone)
	return err
}

// CompleteRegistration upgrades a temporary booking-time account into a full
// one: the password is replaced and the temporary flag cleared.
func (r *UserRepository) CompleteRegistration(ctx context.Context, id, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, is_temporary = false
		WHERE id = $1
	`, id, passwordHash)
	return err
}
