// Package tui holds the terminal front-ends: a capture device picker
// and a live level monitor for a running probe.
package tui

import (
	"fmt"
	"strings"

	"trackprobe/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// DeviceListModel is the Bubble Tea model for browsing capture devices.
type DeviceListModel struct {
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	selectedSampleRate   float64
	availableSampleRates []float64
	sampleRateIndex      int
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return fetchDevices
}

// fetchDevices gets the available audio devices
func fetchDevices() tea.Msg {
	devices, err := audio.GetDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true

			// If we already have devices, render them now
			if len(m.devices) > 0 {
				m.viewport.SetContent(m.renderDevices())
			}
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		// Keys that work on every screen first.
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c"))) {
			return m, tea.Quit
		}

		if m.activeScreen == ListScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.selectedIndex > 0 {
					m.selectedIndex--
					m.viewport.SetContent(m.renderDevices())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
					m.viewport.SetContent(m.renderDevices())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
				if len(m.devices) > 0 {
					m.activeScreen = ConfigScreen

					m.availableSampleRates = []float64{44100, 48000, 88200, 96000}
					m.selectedSampleRate = m.devices[m.selectedIndex].DefaultSampleRate

					// Find the index of the default sample rate
					m.sampleRateIndex = 0
					for i, rate := range m.availableSampleRates {
						if rate == m.selectedSampleRate {
							m.sampleRateIndex = i
							break
						}
					}

					m.viewport.SetContent(m.renderDeviceConfig())
				}
			}
		} else if m.activeScreen == ConfigScreen {
			switch {
			case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
				m.activeScreen = ListScreen
				m.viewport.SetContent(m.renderDevices())

			case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
					m.selectedSampleRate = m.availableSampleRates[m.sampleRateIndex]
					m.viewport.SetContent(m.renderDeviceConfig())
				}

			case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
				if m.sampleRateIndex < len(m.availableSampleRates)-1 {
					m.sampleRateIndex++
					m.selectedSampleRate = m.availableSampleRates[m.sampleRateIndex]
					m.viewport.SetContent(m.renderDeviceConfig())
				}
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Capture Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	var sb strings.Builder

	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n",
			device.ID, device.Name, deviceKind(device))
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n",
			device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

func deviceKind(d audio.Device) string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "None"
	}
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	sb.WriteString(fmt.Sprintf("Configure Device: %s\n\n", device.Name))
	sb.WriteString("Sample Rate:\n")

	for i, rate := range m.availableSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)

		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}

		sb.WriteString(line)
	}

	return sb.String()
}

// NewDeviceListModel creates a new device list model
func NewDeviceListModel() DeviceListModel {
	return DeviceListModel{
		selectedIndex: 0,
		activeScreen:  ListScreen,
	}
}

// StartDeviceListUI launches the Bubble Tea TUI for listing devices
func StartDeviceListUI() error {
	p := tea.NewProgram(
		NewDeviceListModel(),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
