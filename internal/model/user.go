// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認証されたサービス利用ユーザーを表す。
// GoogleUIDはIdPのsubject IDで、ユーザーごとに一意。
type User struct {
	ID        string
	GoogleUID string
	Email     string
	Name      string
	PhotoURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClaimedIdentity はクライアントが申告するIdP由来のユーザー情報。
// POST /api/auth/google のリクエストボディに含まれる。
type ClaimedIdentity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}
