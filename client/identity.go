package client

import "context"

// IdentitySnapshot はIDプロバイダーが通知する現在のアイデンティティ。
// IDTokenはバックエンドへの交換にのみ使用され、クライアントは中身を検査しない。
type IdentitySnapshot struct {
	IDToken string
	User    User
}

// IdentityProvider はフェデレーテッドIDプロバイダーSDKのラッパーインターフェース。
//
// Subscribeは「現在のアイデンティティまたはnil」のスナップショットを
// 購読登録後に少なくとも1回、非同期に通知する。通知は単一の論理スレッド上で
// 配信順に処理されることを前提とする。
type IdentityProvider interface {
	// Subscribe はアイデンティティ変化の購読を開始し、解除関数を返す。
	// handlerにはサインイン時はスナップショット、サインアウト時はnilが渡される。
	Subscribe(handler func(*IdentitySnapshot)) (cancel func())
	// SignOut はIDプロバイダー側のセッションを終了する。
	SignOut(ctx context.Context) error
}
