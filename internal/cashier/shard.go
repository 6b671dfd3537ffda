package cashier

import "github.com/ethereum/go-ethereum/common"

// Shard is a storage unit hosting one OperationStore plus an admin
// allow-list. The orchestrator routes every txID to exactly one shard and all
// record state for that id lives there.
type Shard struct {
	store  *OperationStore
	admins map[common.Address]bool
}

// NewShard creates a shard with an empty store and admin list.
func NewShard() *Shard {
	return &Shard{
		store:  NewOperationStore(),
		admins: make(map[common.Address]bool),
	}
}

// ConfigureAdmin grants or revokes shard-admin status for account. The
// orchestrator propagates the same setting to every shard.
func (sh *Shard) ConfigureAdmin(account common.Address, status bool) {
	if status {
		sh.admins[account] = true
	} else {
		delete(sh.admins, account)
	}
}

// IsAdmin reports whether account holds shard-admin status.
func (sh *Shard) IsAdmin(account common.Address) bool {
	return sh.admins[account]
}

// Store exposes the shard's operation store.
func (sh *Shard) Store() *OperationStore {
	return sh.store
}
