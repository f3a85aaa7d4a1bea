// Package accounts resolves game accounts to their faction.
//
// Every resolver answers FactionOf(ctx, accountID) with ok=false when the
// account has no faction; an error means the lookup itself failed and the
// caller should retry on a later pass.
package accounts

import (
	"errors"

	"github.com/okian/fightlens/internal/domain/cluster"
)

// Default lookup locations.
const (
	DefaultCollection   = "accounts"
	DefaultFactionField = "factionId"
	DefaultKeyPattern   = "account:%s:faction"
)

// Sentinel kinds for resolver errors.
var (
	ErrUnknownBackend = errors.New("unknown account backend")
	ErrBadKeyPattern  = errors.New("redis key pattern must contain one %s")
)

var (
	_ cluster.Resolver = (*Static)(nil)
	_ cluster.Resolver = (*RedisResolver)(nil)
	_ cluster.Resolver = (*MongoResolver)(nil)
)
