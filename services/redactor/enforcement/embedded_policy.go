// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime logic. It uses the Go
embed package to bake pii_patterns.yaml directly into the compiled binary,
so the default redaction rules are immutable at runtime and travel with the
executable. A deployment can still layer an override file on top (see the
redactor watcher), but the embedded baseline is always present.
*/

package enforcement

import (
	_ "embed"
)

// PIIPatterns holds the raw byte content of 'pii_patterns.yaml'.
//
// Populated at compile time via the embed directive. Pass these bytes
// directly to yaml.Unmarshal.
//
//go:embed pii_patterns.yaml
var PIIPatterns []byte
