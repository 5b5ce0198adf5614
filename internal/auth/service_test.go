package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/nailbook/internal/model"
	"github.com/hitoshi/nailbook/internal/repository"
)

// --- モック ---

// fakeUserRepo はメモリ上でUserRepositoryを実装するフェイク。
type fakeUserRepo struct {
	users map[string]*model.User // email -> user
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, ok := f.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	f.users[user.Email] = user
	return nil
}

// fakeSessionRepo はメモリ上でSessionRepositoryを実装するフェイク。
type fakeSessionRepo struct {
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *model.Session) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessionRepo) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s, ok := f.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (f *fakeSessionRepo) DeleteByID(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for id, s := range f.sessions {
		if s.ExpiresAt.Before(time.Now()) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// failingSessionRepo は常にエラーを返すSessionRepositoryのフェイク。
type failingSessionRepo struct{}

func (f *failingSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return errors.New("connection refused")
}

func (f *failingSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, errors.New("connection refused")
}

func (f *failingSessionRepo) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	return errors.New("connection refused")
}

func (f *failingSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return errors.New("connection refused")
}

func (f *failingSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, errors.New("connection refused")
}

func newTestService() (*Service, *fakeUserRepo, *fakeSessionRepo) {
	userRepo := newFakeUserRepo()
	sessionRepo := newFakeSessionRepo()
	svc := NewService(userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})
	return svc, userRepo, sessionRepo
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- テスト ---

// TestSignupThenLogin は有効なサインアップ後に同じ認証情報でログインできることを検証する。
func TestSignupThenLogin(t *testing.T) {
	svc, userRepo, _ := newTestService()
	ctx := context.Background()

	err := svc.Signup(ctx, "Jo Yamada", "jo@example.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	user := userRepo.users["jo@example.com"]
	if user == nil {
		t.Fatal("expected user to be stored")
	}
	if user.PasswordHash == "secret1" {
		t.Error("password must not be stored in plaintext")
	}
	if user.ID == "" {
		t.Error("expected server-assigned user ID")
	}

	session, err := svc.Login(ctx, "jo@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login after Signup returned error: %v", err)
	}
	if session == nil || session.UserID != user.ID {
		t.Errorf("session bound to wrong user: got %+v, want UserID %q", session, user.ID)
	}
}

// TestSignup_DoesNotCreateSession はサインアップ成功がセッションを発行しないことを検証する。
func TestSignup_DoesNotCreateSession(t *testing.T) {
	svc, _, sessionRepo := newTestService()

	if err := svc.Signup(context.Background(), "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	if len(sessionRepo.sessions) != 0 {
		t.Errorf("expected no sessions after signup, got %d", len(sessionRepo.sessions))
	}
}

// TestSignup_ValidationErrors は入力検証の失敗パターンを網羅する。
func TestSignup_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		confirm  string
	}{
		{"空の名前", "", "jo@example.com", "secret1", "secret1"},
		{"空のメールアドレス", "Jo", "", "secret1", "secret1"},
		{"空のパスワード", "Jo", "jo@example.com", "", "secret1"},
		{"空の確認パスワード", "Jo", "jo@example.com", "secret1", ""},
		{"不正なメール形式", "Jo", "not-an-email", "secret1", "secret1"},
		{"アットマークなし", "Jo", "jo.example.com", "secret1", "secret1"},
		{"ドメインにドットなし", "Jo", "jo@example", "secret1", "secret1"},
		{"短すぎるパスワード", "Jo", "jo@example.com", "12345", "12345"},
		{"パスワード不一致", "Jo", "jo@example.com", "secret1", "secret2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, _ := newTestService()

			err := svc.Signup(context.Background(), tt.userName, tt.email, tt.password, tt.confirm)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)

			if len(userRepo.users) != 0 {
				t.Error("validation failure must not mutate the user store")
			}
		})
	}
}

// TestSignup_DuplicateEmail は登録済みメールアドレスでの再登録が
// DuplicateEmailErrorとなり、レコードが追加されないことを検証する。
func TestSignup_DuplicateEmail(t *testing.T) {
	svc, userRepo, _ := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("first Signup returned error: %v", err)
	}

	err := svc.Signup(ctx, "Other Jo", "jo@example.com", "different", "different")
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateEmail)

	if len(userRepo.users) != 1 {
		t.Errorf("expected 1 user after duplicate signup, got %d", len(userRepo.users))
	}
}

// TestSignup_DuplicateEmail_RaceDetectedByConstraint は存在チェックを
// すり抜けた競合がDBのユニーク制約エラー経由でDuplicateEmailに変換されることを検証する。
func TestSignup_DuplicateEmail_RaceDetectedByConstraint(t *testing.T) {
	userRepo := &raceUserRepo{inner: newFakeUserRepo()}
	sessionRepo := newFakeSessionRepo()
	svc := NewService(userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	err := svc.Signup(context.Background(), "Jo", "jo@example.com", "secret1", "secret1")
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateEmail)
}

// raceUserRepo は存在チェックでは未登録に見えるが、
// 挿入時にユニーク制約違反を返すリポジトリ（同時サインアップの競合を再現）。
type raceUserRepo struct {
	inner *fakeUserRepo
}

func (r *raceUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (r *raceUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.inner.FindByID(ctx, id)
}

func (r *raceUserRepo) Create(ctx context.Context, user *model.User) error {
	return repository.ErrDuplicateEmail
}

// TestSignup_EmailIsCaseSensitive はメールアドレスの照合が
// 保存された表記のままの完全一致であることを検証する。
func TestSignup_EmailIsCaseSensitive(t *testing.T) {
	svc, userRepo, _ := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("first Signup returned error: %v", err)
	}
	if err := svc.Signup(ctx, "Jo", "JO@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup with different casing returned error: %v", err)
	}

	if len(userRepo.users) != 2 {
		t.Errorf("expected 2 users with different casing, got %d", len(userRepo.users))
	}
}

// TestLogin_ValidationError は空入力のログインがValidationErrorとなることを検証する。
func TestLogin_ValidationError(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Login(context.Background(), "", "")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	_, err = svc.Login(context.Background(), "jo@example.com", "")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

// TestLogin_WrongPassword は正しいメールアドレスと誤ったパスワードの組み合わせが
// InvalidCredentialsErrorとなり、セッションが発行されないことを検証する。
func TestLogin_WrongPassword(t *testing.T) {
	svc, _, sessionRepo := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, err := svc.Login(ctx, "jo@example.com", "wrong-password")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)

	if len(sessionRepo.sessions) != 0 {
		t.Errorf("expected no sessions after failed login, got %d", len(sessionRepo.sessions))
	}
}

// TestLogin_UnknownEmail は未登録メールアドレスが
// パスワード不一致と同一のエラーになることを検証する（アカウント列挙対策）。
func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "secret1")
	_, wrongPassErr := svc.Login(ctx, "jo@example.com", "wrong")

	assertAPIErrorCode(t, unknownErr, model.ErrCodeInvalidCredentials)
	assertAPIErrorCode(t, wrongPassErr, model.ErrCodeInvalidCredentials)

	// メッセージも一致していること（どちらが誤りかを漏らさない）
	if unknownErr.Error() != wrongPassErr.Error() {
		t.Errorf("error messages must not distinguish unknown email from wrong password: %q vs %q",
			unknownErr.Error(), wrongPassErr.Error())
	}
}

// TestCurrentUser はセッションIDから現在のユーザーを取得できることを検証する。
func TestCurrentUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	session, err := svc.Login(ctx, "jo@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	user, err := svc.CurrentUser(ctx, session.ID)
	if err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if user.Email != "jo@example.com" || user.Name != "Jo" {
		t.Errorf("CurrentUser = %+v, want Jo <jo@example.com>", user)
	}
}

// TestCurrentUser_ExpiredSession は期限切れセッションでErrNoSessionになることを検証する。
func TestCurrentUser_ExpiredSession(t *testing.T) {
	svc, _, sessionRepo := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	session, err := svc.Login(ctx, "jo@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	// 期限切れに改変
	sessionRepo.sessions[session.ID].ExpiresAt = time.Now().Add(-1 * time.Minute)

	if _, err := svc.CurrentUser(ctx, session.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession for expired session, got %v", err)
	}
}

// TestCurrentUser_RepoFailure はリポジトリ障害がErrNoSessionと区別されることを検証する。
func TestCurrentUser_RepoFailure(t *testing.T) {
	userRepo := newFakeUserRepo()
	svc := NewService(userRepo, &failingSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	_, err := svc.CurrentUser(context.Background(), "some-session")
	if err == nil {
		t.Fatal("expected error for repo failure, got nil")
	}
	if errors.Is(err, ErrNoSession) {
		t.Error("repo failure must not be reported as ErrNoSession")
	}
}

// TestLogout はログアウトでセッションが破棄されることを検証する。
func TestLogout(t *testing.T) {
	svc, _, sessionRepo := newTestService()
	ctx := context.Background()

	if err := svc.Signup(ctx, "Jo", "jo@example.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	session, err := svc.Login(ctx, "jo@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	if _, ok := sessionRepo.sessions[session.ID]; ok {
		t.Error("expected session to be deleted after logout")
	}
}
