// Package dataaccess はセッションに紐づくデータアクセスハンドルのキャッシュを提供する。
//
// Cache はリクエスト処理の過程で同一セッションに対するハンドル生成を
// 1回に抑えるための明示的なインスタンスであり、パッケージレベルの状態は持たない。
// セッションの同一性が変化した場合（ログイン、ログアウト、別ユーザーへの切替）は
// 保持している全てのフィールドをまとめて差し替える。
package dataaccess

import (
	"sync"

	"github.com/hitoshi/propfolio/internal/model"
)

// AccessMode はデータアクセスハンドルの権限モード。
type AccessMode string

const (
	// ModeGuest は未認証アクセス。公開データの読み取りのみ。
	ModeGuest AccessMode = "guest"
	// ModeUser は認証済み一般ユーザーアクセス。
	ModeUser AccessMode = "user"
	// ModeAdmin は管理者アクセス。物件の作成・更新・削除が可能。
	ModeAdmin AccessMode = "admin"
)

// Accessor はセッションに紐づくデータアクセスハンドル。
// 生成元セッションの識別情報と権限モードを保持する。
type Accessor struct {
	// Mode はこのハンドルの権限モード。
	Mode AccessMode
	// Subject は認証プロバイダ発行の識別子。ゲストの場合は空文字列。
	Subject string
	// Email は認証済みユーザーのメールアドレス。ゲストの場合は空文字列。
	Email string
}

// Cache はセッションスコープのアクセスハンドルキャッシュ。
// 直近に観測したセッション、そのセッションに紐づくハンドル、
// 解決済みユーザーレコードIDの3点を一体で保持する。
// 全フィールドはミューテックスで保護され、永続化はしない。
type Cache struct {
	mu sync.Mutex

	// primed は一度でもClientが呼ばれたかどうか。
	// 「未観測」と「nilセッションを観測済み」を区別するために持つ。
	primed bool
	// sessionID は直近に観測したセッションのID。nilセッションの場合は空文字列。
	sessionID string
	// accessor は直近のセッションに紐づくハンドル。
	accessor *Accessor
	// userRecordID はこのセッションで解決済みのユーザーレコードID。未解決なら空文字列。
	userRecordID string
}

// NewCache はCacheの新しいインスタンスを生成する。
func NewCache() *Cache {
	return &Cache{}
}

// Client はセッションに対応するアクセスハンドルを返す。
// セッションIDが前回と同一であればキャッシュ済みのハンドルをそのまま返す。
// 同一性が変化した場合（nilと非nilの変化を含む）は、セッションID・ハンドル・
// ユーザーレコードIDの3フィールドを全て新しい値に差し替える。
func (c *Cache) Client(session *model.Session) *Accessor {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primed && c.sessionID == sessionIdentity(session) {
		return c.accessor
	}

	c.primed = true
	c.sessionID = sessionIdentity(session)
	c.accessor = newAccessor(session)
	c.userRecordID = ""
	return c.accessor
}

// UserRecordID はセッションに対して解決済みのユーザーレコードIDを返す。
// セッションの同一性が保持している値と一致しない場合はキャッシュミスとして扱う。
func (c *Cache) UserRecordID(session *model.Session) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed || c.sessionID != sessionIdentity(session) || c.userRecordID == "" {
		return "", false
	}
	return c.userRecordID, true
}

// SetUserRecordID は解決済みユーザーレコードIDをキャッシュする。
// セッションの同一性が保持している値と一致しない場合は何もしない。
// ハンドル生成とID解決の間にセッションが切り替わった場合、
// 古いセッションのIDを新しいセッションに紐づけないための防御。
func (c *Cache) SetUserRecordID(session *model.Session, recordID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed || c.sessionID != sessionIdentity(session) {
		return
	}
	c.userRecordID = recordID
}

// Reset はキャッシュを未観測状態に戻す。
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.primed = false
	c.sessionID = ""
	c.accessor = nil
	c.userRecordID = ""
}

// sessionIdentity はキャッシュキーとなるセッションの同一性を返す。
// nilセッションは空文字列として扱う。
func sessionIdentity(session *model.Session) string {
	if session == nil {
		return ""
	}
	return session.ID
}

// newAccessor はセッションからアクセスハンドルを生成する。
func newAccessor(session *model.Session) *Accessor {
	if session == nil {
		return &Accessor{Mode: ModeGuest}
	}
	mode := ModeUser
	if session.IsAdmin {
		mode = ModeAdmin
	}
	return &Accessor{
		Mode:    mode,
		Subject: session.Subject,
		Email:   session.Email,
	}
}
