package member

import "time"

// Member is a satsangee registered to a village. Only verified members count
// toward a block's volunteer tally.
type Member struct {
	ID        int64
	FullName  string
	Phone     string
	VillageID int64
	Verified  bool
	CreatedAt time.Time
}

// RegisterRequest carries a new member registration.
type RegisterRequest struct {
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	VillageID int64  `json:"village_id"`
}
