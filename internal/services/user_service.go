package services

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lendingdesk/lending-api/internal/apperr"
	"github.com/lendingdesk/lending-api/internal/database"
	"github.com/lendingdesk/lending-api/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(username string) (models.User, error)
	GetUserByID(id string) (models.User, error)
	GetUserByUsername(username string) (models.User, error)
	ListUsers(skip, limit int) ([]models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db       *sql.DB
	eventSvc EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, eventSvc EventServiceProvider) *UserService {
	return &UserService{db: db, eventSvc: eventSvc}
}

// CreateUser registers a new user with a unique username.
func (s *UserService) CreateUser(username string) (models.User, error) {
	if len(username) < 3 {
		return models.User{}, apperr.New(apperr.ErrUnprocessable, "Username must be at least 3 characters")
	}
	if _, err := s.GetUserByUsername(username); err == nil {
		return models.User{}, apperr.New(apperr.ErrConflict, "Username already exists")
	}

	user := models.User{
		ID:       uuid.New().String(),
		Username: username,
	}

	stmt, err := s.db.Prepare("INSERT INTO users(id, username) VALUES(?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(user.ID, user.Username); err != nil {
		// Two concurrent registrations can both pass the lookup above; the
		// UNIQUE index on username settles the race.
		if database.IsUniqueViolation(err) {
			return models.User{}, apperr.New(apperr.ErrConflict, "Username already exists")
		}
		return models.User{}, err
	}

	s.eventSvc.Record("user.create", "info", "User '"+user.Username+"' registered.", nil)
	return s.GetUserByID(user.ID)
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, apperr.Newf(apperr.ErrNotFound, "User %s not found", id)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByUsername retrieves a single user by their username.
func (s *UserService) GetUserByUsername(username string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, created_at FROM users WHERE username = ?", username)
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, apperr.Newf(apperr.ErrNotFound, "User %s not found", username)
		}
		return models.User{}, err
	}
	return user, nil
}

// ListUsers retrieves users ordered by creation time.
func (s *UserService) ListUsers(skip, limit int) ([]models.User, error) {
	rows, err := s.db.Query("SELECT id, username, created_at FROM users ORDER BY created_at LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
