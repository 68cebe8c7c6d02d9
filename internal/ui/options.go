/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop front end: a window with the drawing view and a
// toolbar. The window is only compiled with -tags fyne; other builds get a
// stub Run so headless CI needs no OpenGL.
package ui

import "photomark/internal/config"

// Options configures Run.
type Options struct {
	Config config.AppConfig
	// Secret is the gallery database password from the OS keychain.
	Secret string
	// ImagePath is opened right away when set.
	ImagePath string
}
