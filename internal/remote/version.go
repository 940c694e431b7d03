package remote

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/young1lin/supplementbot/pkg/logger"
)

const (
	clientModule = "github.com/sashabaranov/go-openai"

	// MinClientVersion is the first release with Assistants v2 vector stores
	MinClientVersion = "v1.24.0"
)

// CheckCompatibility fails if the linked client library is older than
// MinClientVersion. An undeterminable version only logs a warning.
func CheckCompatibility() error {
	version := linkedVersion()
	if err := checkVersion(version); err != nil {
		return err
	}
	if !semver.IsValid(version) {
		logger.Warn("could not determine assistants client version",
			zap.String("module", clientModule),
			zap.String("version", version),
		)
		return nil
	}

	logger.Info("assistants client version is compatible",
		zap.String("module", clientModule),
		zap.String("version", version),
	)
	return nil
}

func checkVersion(version string) error {
	if !semver.IsValid(version) {
		return nil
	}
	if semver.Compare(version, MinClientVersion) < 0 {
		return fmt.Errorf("%s %s is less than the required version %s", clientModule, version, MinClientVersion)
	}
	return nil
}

func linkedVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path != clientModule {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return ""
}
