package entity

// Roles válidos del token.
const (
	RoleAdmin  = "admin"  // operador del marketplace: ve y modifica todo
	RoleSeller = "seller" // vendedor: solo sus productos y SKU
)

// Actor quien ejecuta la operación (extraído del JWT).
type Actor struct {
	UserID   string
	SellerID string
	Role     string
}

// IsAdmin indica si el actor tiene rol admin.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess indica si el actor puede operar sobre recursos del vendedor dado.
func (a Actor) CanAccess(sellerID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleSeller && a.SellerID != "" && a.SellerID == sellerID
}
