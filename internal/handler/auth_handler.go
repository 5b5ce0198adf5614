// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/nailbook/internal/auth"
	"github.com/hitoshi/nailbook/internal/middleware"
	"github.com/hitoshi/nailbook/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, name, email, password, confirmPassword string) error
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// BookingLister はダッシュボード表示に必要な予約一覧のインターフェース。
type BookingLister interface {
	Filter(query string) ([]model.Booking, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
type AuthMetrics interface {
	RecordSignup()
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はフォームベースの認証関連HTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	bookings BookingLister
	config   AuthHandlerConfig
	metrics  AuthMetrics // nilの場合は記録しない
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, bookings BookingLister, config AuthHandlerConfig, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service:  service,
		bookings: bookings,
		config:   config,
		metrics:  metrics,
	}
}

// authPageData は認証フォームページのテンプレートデータ。
type authPageData struct {
	Active      string // "login" または "signup"
	Message     string
	MessageKind string // "error" または "success"
	Name        string // 再表示用
	Email       string // 再表示用
}

// ShowForm はログイン・新規登録フォームを表示する。
// GET /
// ログイン済みの場合はダッシュボードへリダイレクトする。
func (h *AuthHandler) ShowForm(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.service.CurrentUser(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}

	active := r.URL.Query().Get("tab")
	if active != "signup" {
		active = "login"
	}

	h.renderAuthPage(w, http.StatusOK, authPageData{Active: active})
}

// Submit はログイン・新規登録フォームの送信を処理する。
// POST /
// actionフィールドで処理を振り分ける。
func (h *AuthHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderAuthPage(w, http.StatusBadRequest, authPageData{
			Active:      "login",
			Message:     "リクエストの形式が正しくありません。",
			MessageKind: "error",
		})
		return
	}

	switch r.PostFormValue("action") {
	case "signup":
		h.handleSignup(w, r)
	case "login":
		h.handleLogin(w, r)
	default:
		h.renderAuthPage(w, http.StatusBadRequest, authPageData{
			Active:      "login",
			Message:     "不明な操作です。",
			MessageKind: "error",
		})
	}
}

// handleSignup は新規登録を処理する。
// 成功してもログインはさせず、ログインフォームに誘導する。
func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("name")
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	if err := h.service.Signup(r.Context(), name, email, password, confirm); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.renderAuthPage(w, middleware.StatusForAPIError(apiErr), authPageData{
				Active:      "signup",
				Message:     apiErr.Message,
				MessageKind: "error",
				Name:        name,
				Email:       email,
			})
			return
		}

		slog.Error("signup failed", slog.String("error", err.Error()))
		h.renderAuthPage(w, http.StatusInternalServerError, authPageData{
			Active:      "signup",
			Message:     "内部エラーが発生しました。しばらく待ってから再度お試しください。",
			MessageKind: "error",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSignup()
	}

	h.renderAuthPage(w, http.StatusOK, authPageData{
		Active:      "login",
		Message:     "登録が完了しました。ログインしてください。",
		MessageKind: "success",
		Email:       email,
	})
}

// handleLogin はログインを処理する。
// 成功時はセッションCookieを設定してダッシュボードへリダイレクトする。
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	session, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			if h.metrics != nil {
				switch apiErr.Code {
				case model.ErrCodeValidation:
					h.metrics.RecordLoginFailure("validation")
				default:
					h.metrics.RecordLoginFailure("invalid_credentials")
				}
			}
			h.renderAuthPage(w, middleware.StatusForAPIError(apiErr), authPageData{
				Active:      "login",
				Message:     apiErr.Message,
				MessageKind: "error",
				Email:       email,
			})
			return
		}

		slog.Error("login failed", slog.String("error", err.Error()))
		h.renderAuthPage(w, http.StatusInternalServerError, authPageData{
			Active:      "login",
			Message:     "内部エラーが発生しました。しばらく待ってから再度お試しください。",
			MessageKind: "error",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout はセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
// セッションが無効な場合は401、DB障害などの内部エラーは500を返す。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// dashboardPageData はダッシュボードページのテンプレートデータ。
type dashboardPageData struct {
	UserName string
	Bookings []model.Booking
}

// Dashboard は予約管理ダッシュボードを表示する。
// GET /dashboard
// 未ログインの場合はログインフォームへリダイレクトする。
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	bookings, err := h.bookings.Filter("")
	if err != nil {
		slog.Error("failed to list bookings", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "dashboard.html", dashboardPageData{
		UserName: user.Name,
		Bookings: bookings,
	}); err != nil {
		slog.Error("failed to render dashboard", slog.String("error", err.Error()))
	}
}

// renderAuthPage は認証フォームページを描画する。
func (h *AuthHandler) renderAuthPage(w http.ResponseWriter, status int, data authPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, "auth.html", data); err != nil {
		slog.Error("failed to render auth page", slog.String("error", err.Error()))
	}
}
