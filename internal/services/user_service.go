package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	netmail "net/mail"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/export"
	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/mail"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

const (
	photoCategory   = "photos"
	diplomaCategory = "diplomas"
)

// UserConfig bounds uploads and names the platform in emails.
type UserConfig struct {
	MaxPhotoSize    int64
	MaxDocumentSize int64
	AppName         string
}

type userService struct {
	repo      repositories.Repository
	sessions  repositories.SessionRepository
	store     *storage.Store
	mailer    mail.Mailer
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validator *validator.Validator
	cfg       UserConfig
	hashCost  int
}

func NewUserService(
	repo repositories.Repository,
	sessions repositories.SessionRepository,
	store *storage.Store,
	mailer mail.Mailer,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	validator *validator.Validator,
	cfg UserConfig,
) UserService {
	return &userService{
		repo:      repo,
		sessions:  sessions,
		store:     store,
		mailer:    mailer,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		validator: validator,
		cfg:       cfg,
		hashCost:  bcrypt.DefaultCost,
	}
}

func (s *userService) List(ctx context.Context, actor Actor, filters repositories.UserFilters) (*models.ListResponse[*models.User], error) {
	if !actor.IsStaff() {
		return nil, NewPermissionError(actor.ID, 0, "user", "list", "staff only")
	}
	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		u.Sanitize()
	}
	return models.NewListResponse(users, total, filters.Pagination), nil
}

func (s *userService) GetByID(ctx context.Context, actor Actor, id uint) (*models.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

func (s *userService) getUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, req *ProfileUpdateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.applyProfile(ctx, user, req.Name, req.Email); err != nil {
		return nil, err
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user.Sanitize(), nil
}

func (s *userService) applyProfile(ctx context.Context, user *models.User, name, email *string) error {
	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if email != nil && !strings.EqualFold(*email, user.Email) {
		taken, err := s.repo.User().ExistsByEmail(ctx, strings.ToLower(*email), user.ID)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return ErrUsernameTaken
		}
		user.Email = strings.ToLower(*email)
	}
	return nil
}

func (s *userService) save(ctx context.Context, user *models.User) error {
	if err := s.repo.User().Update(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return ErrUsernameTaken
		}
		return notFoundAs(err, ErrUserNotFound, "update user")
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, actor Actor, req *PasswordChangeRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	user, err := s.getUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}
	hash, err := hashPassword(req.NewPassword, s.hashCost)
	if err != nil {
		return err
	}
	if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{"password_hash": hash}); err != nil {
		return notFoundAs(err, ErrUserNotFound, "update password")
	}
	s.logger.Info("Password changed", "user_id", user.ID)
	return nil
}

func (s *userService) Create(ctx context.Context, actor Actor, req *UserCreateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Role == models.RoleAdmin && !actor.IsAdmin() {
		return nil, NewPermissionError(actor.ID, 0, "user", "create_admin", "only admins manage admins")
	}
	user, err := s.createApproved(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User created", "user_id", user.ID, "role", user.Role.String(), "created_by", actor.ID)
	return user.Sanitize(), nil
}

func (s *userService) createApproved(ctx context.Context, req *UserCreateRequest) (*models.User, error) {
	if err := ensureUnique(ctx, s.repo.User(), req.Username, req.Email, 0); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       models.RegistrationApproved,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *userService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	req := &UserCreateRequest{
		Username: username,
		Email:    email,
		Name:     username,
		Password: password,
		Role:     models.RoleAdmin,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.createApproved(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Administrator created", "user_id", user.ID)
	return user.Sanitize(), nil
}

func (s *userService) Update(ctx context.Context, actor Actor, id uint, req *UserUpdateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (user.Role == models.RoleAdmin || (req.Role != nil && *req.Role == models.RoleAdmin)) {
		return nil, NewPermissionError(actor.ID, id, "user", "update", "only admins manage admins")
	}

	if err := s.applyProfile(ctx, user, req.Name, req.Email); err != nil {
		return nil, err
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User updated", "user_id", id, "updated_by", actor.ID)
	return user.Sanitize(), nil
}

// Delete removes the user, their sessions and their stored files.
func (s *userService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return NewPermissionError(actor.ID, id, "user", "delete", "admin only")
	}
	if actor.ID == id {
		return NewBusinessRuleError("self_delete", "administrators cannot delete themselves", nil)
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.User().Delete(ctx, id); err != nil {
		if repositories.IsInUseError(err) {
			return NewBusinessRuleError("user_in_use", "the user still owns forms or materials", map[string]interface{}{"user_id": id})
		}
		return notFoundAs(err, ErrUserNotFound, "delete user")
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteByUser(ctx, id); err != nil {
			s.logger.Warn("Failed to drop sessions of deleted user", "user_id", id, "error", err)
		}
	}
	s.removeFile(user.Photo)
	s.removeFile(user.DiplomaPath)

	s.logger.Info("User deleted", "user_id", id, "deleted_by", actor.ID)
	return nil
}

func (s *userService) UpdateStatus(ctx context.Context, actor Actor, id uint, req *UserStatusRequest) (*models.User, error) {
	if !actor.IsStaff() {
		return nil, NewPermissionError(actor.ID, id, "user", "update_status", "staff only")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateRegistrationTransition(user.Status, req.Status); err != nil {
		return nil, err
	}

	from := user.Status
	user.Status = req.Status
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("Registration status changed",
		"user_id", id,
		"from", from,
		"to", req.Status,
		"changed_by", actor.ID)

	s.notifyStatus(ctx, user)
	publishEvent(ctx, s.publisher, s.logger, events.TopicUsers, events.UserStatusChanged, events.UserEvent{
		UserID: user.ID,
		Email:  user.Email,
		Role:   int(user.Role),
		Status: string(user.Status),
		From:   string(from),
	})
	return user.Sanitize(), nil
}

// notifyStatus emails the decision in the platform's default language.
// Delivery failures are logged only.
func (s *userService) notifyStatus(ctx context.Context, user *models.User) {
	if s.mailer == nil {
		return
	}
	lctx := i18n.WithLocalizer(ctx, i18n.NewLocalizer())
	data := map[string]any{
		"Name":   user.Name,
		"Status": string(user.Status),
		"App":    s.cfg.AppName,
	}
	body := i18n.Td(lctx, "StatusEmailBody", data)
	msg := &mail.Message{
		To:          []netmail.Address{{Name: user.Name, Address: user.Email}},
		Subject:     i18n.Td(lctx, "StatusEmailSubject", data),
		TextContent: body,
		HTMLContent: "<p>" + html.EscapeString(body) + "</p>",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to send status email", "user_id", user.ID, "error", err)
	}
}

// ===== FILES =====

func (s *userService) UploadPhoto(ctx context.Context, actor Actor, content io.Reader) (*models.User, error) {
	return s.replaceFile(ctx, actor, content, photoCategory, storage.Policy{
		MaxSize: s.cfg.MaxPhotoSize,
		Allowed: storage.PhotoTypes,
	}, "photo")
}

func (s *userService) UploadDiploma(ctx context.Context, actor Actor, content io.Reader) (*models.User, error) {
	return s.replaceFile(ctx, actor, content, diplomaCategory, storage.Policy{
		MaxSize: s.cfg.MaxDocumentSize,
		Allowed: storage.DiplomaTypes,
	}, "diploma_path")
}

// replaceFile stores the upload, points column at it and removes the
// previous file.
func (s *userService) replaceFile(ctx context.Context, actor Actor, content io.Reader, category string, policy storage.Policy, column string) (*models.User, error) {
	user, err := s.getUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Save(ctx, category, content, policy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{column: stored.Key}); err != nil {
		s.removeFile(&stored.Key)
		return nil, notFoundAs(err, ErrUserNotFound, "update "+column)
	}
	s.metrics.Upload(category)

	var previous *string
	if column == "photo" {
		previous, user.Photo = user.Photo, &stored.Key
	} else {
		previous, user.DiplomaPath = user.DiplomaPath, &stored.Key
	}
	s.removeFile(previous)

	s.logger.Info("User file stored",
		"user_id", user.ID,
		"category", category,
		"mime_type", stored.MimeType,
		"size", stored.Size)
	return user.Sanitize(), nil
}

func (s *userService) DeletePhoto(ctx context.Context, actor Actor) (*models.User, error) {
	user, err := s.getUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if user.Photo == nil {
		return user.Sanitize(), nil
	}
	if err := s.repo.User().UpdateFields(ctx, user.ID, map[string]interface{}{"photo": nil}); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "clear photo")
	}
	s.removeFile(user.Photo)
	user.Photo = nil
	return user.Sanitize(), nil
}

func (s *userService) OpenPhoto(ctx context.Context, id uint) (*FileDownload, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(user.Photo, fmt.Sprintf("user-%d-photo", id))
}

func (s *userService) OpenDiploma(ctx context.Context, actor Actor, id uint) (*FileDownload, error) {
	if actor.ID != id && !actor.IsStaff() {
		return nil, NewPermissionError(actor.ID, id, "diploma", "download", "owner or staff only")
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(user.DiplomaPath, fmt.Sprintf("user-%d-diploma", id))
}

func (s *userService) open(key *string, name string) (*FileDownload, error) {
	if key == nil || *key == "" {
		return nil, ErrFileNotFound
	}
	f, err := s.store.Open(*key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	return &FileDownload{
		Name:    name + path.Ext(*key),
		ModTime: modTime,
		Content: f,
	}, nil
}

func (s *userService) removeFile(key *string) {
	if key == nil || *key == "" || s.store == nil {
		return
	}
	if err := s.store.Delete(*key); err != nil {
		s.logger.Warn("Failed to delete stored file", "key", *key, "error", err)
	}
}

// ===== IMPORT =====

// Import creates approved students from a spreadsheet. Rows that fail
// validation or collide with existing users are skipped and reported.
func (s *userService) Import(ctx context.Context, actor Actor, content io.Reader) (*ImportResult, error) {
	if !actor.IsStaff() {
		return nil, NewPermissionError(actor.ID, 0, "user", "import", "staff only")
	}
	rows, err := export.ReadUsers(content)
	if err != nil {
		return nil, NewValidationError("file", err.Error(), nil)
	}

	result := &ImportResult{Rows: make([]ImportRowResult, 0, len(rows))}
	for _, row := range rows {
		line := ImportRowResult{Line: row.Line, Username: row.Username}
		req := &UserCreateRequest{
			Username: row.Username,
			Email:    row.Email,
			Name:     row.Name,
			Password: row.Password,
			Role:     models.RoleStudent,
		}

		var user *models.User
		err := s.validator.Validate(req)
		if err == nil {
			user, err = s.createApproved(ctx, req)
		}

		var ve validator.ValidationErrors
		switch {
		case err == nil:
			line.Status = "created"
			line.UserID = user.ID
			result.Created++
		case errors.As(err, &ve) && len(ve) > 0:
			line.Status = "skipped"
			line.Reason = ve[0].Field + ": " + ve[0].Message
			result.Skipped++
		case errors.Is(err, ErrUsernameTaken):
			line.Status = "skipped"
			line.Reason = err.Error()
			result.Skipped++
		default:
			return nil, fmt.Errorf("failed to import row %d: %w", row.Line, err)
		}
		result.Rows = append(result.Rows, line)
	}

	s.logger.Info("User import finished",
		"created", result.Created,
		"skipped", result.Skipped,
		"imported_by", actor.ID)
	return result, nil
}
