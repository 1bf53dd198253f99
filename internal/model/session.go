// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーのログインセッションを表す。
// Subjectは認証プロバイダーのサブジェクト識別子（"provider:sub"形式）で、
// UserRecordのOwnerと対応する。未認証セッションはnilセッションとして扱う。
type Session struct {
	ID        string
	Subject   string
	Email     string
	Name      string
	IsAdmin   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
