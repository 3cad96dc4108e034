package service

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/backoffice/internal/constants"
)

// Actor 操作人标识，格式为 admin:<id> 或 system:<name>
type Actor string

// AdminActor 管理员操作人
func AdminActor(adminID uint) Actor {
	return Actor(fmt.Sprintf("%s:%d", constants.ActorKindAdmin, adminID))
}

// SystemActor 系统操作人（补偿任务、定时任务等）
func SystemActor(name string) Actor {
	return Actor(fmt.Sprintf("%s:%s", constants.ActorKindSystem, strings.TrimSpace(name)))
}

// ParseActor 解析并校验操作人标识
func ParseActor(raw string) (Actor, error) {
	actor := Actor(strings.TrimSpace(raw))
	if err := actor.Validate(); err != nil {
		return "", err
	}
	return actor, nil
}

// Validate 校验操作人标识
func (a Actor) Validate() error {
	kind, ident, ok := strings.Cut(string(a), ":")
	if !ok || strings.TrimSpace(ident) == "" {
		return ErrActorRequired
	}
	switch kind {
	case constants.ActorKindAdmin:
		if ident == "0" {
			return ErrActorRequired
		}
		return nil
	case constants.ActorKindSystem:
		return nil
	default:
		return ErrActorRequired
	}
}

func (a Actor) String() string {
	return string(a)
}
