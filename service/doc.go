// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// The service package installs and controls the init system jobs that run
// the Cloud Foundry components on a unit's host.
package service
