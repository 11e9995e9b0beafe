package service

// Actor 操作人
type Actor struct {
	UserID  uint
	IsAdmin bool
}

// SystemActor 调度器与回调使用的系统身份
var SystemActor = Actor{IsAdmin: true}

// CanAccess 是否可访问属于 ownerID 的资源
func (a Actor) CanAccess(ownerID uint) bool {
	return a.IsAdmin || (a.UserID != 0 && a.UserID == ownerID)
}
