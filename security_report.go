package authcore

// SecurityReport returns a snapshot of the engine's active security posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.Token.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PlainPKCEAllowed: e.config.Flow.AllowPlainPKCE,
		ReuseDetection:   true,
		LockoutActive:    e.config.Lockout.Enabled,
		AuditActive:      e.config.Audit.Enabled,
		MetricsActive:    e.config.Metrics.Enabled,
	}
}
