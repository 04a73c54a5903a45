package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Start    StartDeps
	Approval ApprovalDeps
	Redeem   RedeemDeps
	Rotate   RotateDeps
	Login    LoginDeps
}
