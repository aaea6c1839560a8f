/***************************************************************
 *
 * Copyright (C) 2025, CloudStream Studio Project
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type HealthStatusEnum int

const (
	StatusCritical HealthStatusEnum = iota + 1
	StatusWarning
	StatusOK
	StatusUnknown
)

type HealthStatusComponent string

const (
	RemoteStoreComponent HealthStatusComponent = "remote_store"
	ChunkCacheComponent  HealthStatusComponent = "chunk_cache"
	WebComponent         HealthStatusComponent = "web"
)

func (status HealthStatusEnum) String() string {
	strings := [...]string{"critical", "warning", "ok", "unknown"}
	if int(status) < 1 || int(status) > len(strings) {
		return "unknown"
	}
	return strings[status-1]
}

func (component HealthStatusComponent) String() string {
	return string(component)
}

type componentStatus struct {
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// HealthStatus is the JSON document returned by the health endpoint.
type HealthStatus struct {
	OverallStatus string                     `json:"status"`
	Components    map[string]componentStatus `json:"components"`
}

var healthStatus sync.Map

// SetComponentHealthStatus records the current health of one component and
// mirrors it into the Prometheus gauge.
func SetComponentHealthStatus(name HealthStatusComponent, state HealthStatusEnum, msg string) {
	healthStatus.Store(name.String(), componentStatus{
		Status:     state.String(),
		Message:    msg,
		LastUpdate: time.Now(),
	})
	ComponentHealthStatus.With(prometheus.Labels{"component": name.String()}).Set(float64(state))
}

// GetHealthStatus aggregates all component statuses; the overall status is
// the worst component status observed.
func GetHealthStatus() HealthStatus {
	status := HealthStatus{
		OverallStatus: StatusUnknown.String(),
		Components:    make(map[string]componentStatus),
	}
	overall := StatusUnknown
	healthStatus.Range(func(component, compStat any) bool {
		name, ok := component.(string)
		if !ok {
			return true
		}
		stat, ok := compStat.(componentStatus)
		if !ok {
			return true
		}
		status.Components[name] = stat
		for _, candidate := range []HealthStatusEnum{StatusOK, StatusWarning, StatusCritical} {
			if stat.Status == candidate.String() && (overall == StatusUnknown || candidate < overall) {
				overall = candidate
			}
		}
		return true
	})
	status.OverallStatus = overall.String()
	return status
}
