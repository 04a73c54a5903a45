package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Start.Store != nil
}

func (s Service) StartFlow(ctx context.Context, req StartRequest) StartResult {
	return RunStartFlow(ctx, req, s.deps.Start)
}

func (s Service) CompleteApproval(ctx context.Context, state, subjectID, approvedScope string) ApprovalResult {
	return RunCompleteApproval(ctx, state, subjectID, approvedScope, s.deps.Approval)
}

func (s Service) RedeemCode(ctx context.Context, req RedeemRequest) RedeemResult {
	return RunRedeemCode(ctx, req, s.deps.Redeem)
}

func (s Service) Rotate(ctx context.Context, rawToken string) RotateResult {
	return RunRotate(ctx, rawToken, s.deps.Rotate)
}

func (s Service) Login(ctx context.Context, identifier, password, clientID string) LoginResult {
	return RunLogin(ctx, identifier, password, clientID, s.deps.Login)
}
