package userrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/database"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/repository/productrepo"
)

const userColumns = `id, username, email, password_hash, is_admin, created_at`

// UserRepository stores operator accounts.
type UserRepository struct {
	db     *database.Gateway
	logger logger.Logger
	tracer trace.Tracer
}

func NewUserRepository(db *database.Gateway, log logger.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: log,
		tracer: otel.Tracer("repository/userrepo"),
	}
}

// Save inserts a user. A duplicate username or email is a ConflictError.
func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Save")
	defer span.End()

	user.CreatedAt = productrepo.Now()

	const query = `
		INSERT INTO users (username, email, password_hash, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		return q.QueryRowContext(ctx, query,
			user.Username, user.Email, user.PasswordHash, user.IsAdmin, user.CreatedAt,
		).Scan(&user.ID)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			r.logger.Info("user already exists", map[string]interface{}{"username": user.Username})
			return domain.User{}, apperror.NewConflictError("username or email already registered")
		}
		span.RecordError(err)
		r.logger.Error("failed to insert user", err)
		return domain.User{}, apperror.NewDBError("failed to insert user", err)
	}

	r.logger.Info("user saved", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return user, nil
}

// FindByUsername looks a user up by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.FindByUsername")
	defer span.End()

	return r.findOne(ctx, span, `SELECT `+userColumns+` FROM users WHERE username = $1`, username,
		fmt.Sprintf("user %q not found", username))
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.FindByID")
	defer span.End()

	return r.findOne(ctx, span, `SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		fmt.Sprintf("user %d not found", id))
}

func (r *UserRepository) findOne(ctx context.Context, span trace.Span, query string, arg any, notFound string) (domain.User, error) {
	var user domain.User
	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		return q.QueryRowContext(ctx, query, arg).Scan(
			&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, apperror.NewNotFoundError(notFound)
	}
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to load user", err)
		return domain.User{}, apperror.NewDBError("failed to load user", err)
	}
	return user, nil
}
