// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // ginkgo convention
)

func TestEngineScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Scenarios Suite")
}
