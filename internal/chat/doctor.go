package chat

import (
	"github.com/xcawolfe-amzn/teamchat/internal/doctor"
)

// DoctorCheck runs the storage diagnostics battery against team. sampleSize
// bounds the per-inbox sample; zero or negative means the default.
func (s *Service) DoctorCheck(team string, sampleSize int) (*doctor.Report, error) {
	st, err := s.Store(team)
	if err != nil {
		return nil, err
	}
	report := doctor.Run(st, doctor.Options{
		GeneratedAt: s.nowStamp(),
		SampleSize:  sampleSize,
	})
	if report.OverallStatus != doctor.StatusHealthy {
		s.logger.Warn().Str("team", team).Str("status", string(report.OverallStatus)).Msg("doctor found problems")
	}
	return report, nil
}
