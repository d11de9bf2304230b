// Package content holds the canned text the relay serves: the topic pool, the
// bot command table and the help reply. Defaults are built in; a YAML content
// pack can replace any part of them.
package content

import (
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

const DefaultBotName = "🤖 Slacker Bot"

const DefaultHelp = "I didn't quite get that. Try one of these:\n" +
	"/joke - tell a lame joke\n" +
	"/excuse - generate an excuse to leave early\n" +
	"/rant - complain about the boss\n" +
	"/tip - share a slacking tip"

var DefaultTopics = []string{
	"Did you pretend to be busy today?",
	"Share one slacking trick",
	"What do you do when the boss is away?",
	"What's your favourite site to slack off on?",
	"If slacking were an art, what level are you?",
	"Describe your daily slacking routine",
	"The most awkward moment you got caught slacking",
	"What does your ideal working state look like?",
}

var DefaultCommands = map[string][]string{
	"/joke": {
		"Why do programmers mix up Halloween and Christmas?\nBecause Oct 31 == Dec 25 😄",
		"Why do programmers prefer the dark?\nBecause light attracts bugs! 💡➡️🐛",
		"The three virtues of a programmer: laziness, impatience, hubris.\nThat's why we slack 😎",
		"Why do programmers always wear headphones?\nSo nobody interrupts the slacking 🎧",
	},
	"/excuse": {
		"🏥 Suggestion: a pipe burst at home, waiting for the plumber\nSuccess rate: ⭐⭐⭐⭐☆\nUsed by colleagues: nobody yet",
		"🚗 Suggestion: the car broke down, waiting for the tow truck\nSuccess rate: ⭐⭐⭐☆☆\nUsed by colleagues: 2",
		"👵 Suggestion: grandma is sick, taking her to the hospital\nSuccess rate: ⭐⭐⭐⭐⭐\nUsed by colleagues: 1",
		"📱 Suggestion: lost my phone, need to replace the SIM\nSuccess rate: ⭐⭐⭐☆☆\nUsed by colleagues: 3",
	},
	"/rant": {
		"The boss is painting pies in the sky again. \"We're a family\" - does family make you work 996? 😤",
		"Why do meetings never reach a conclusion? Are we only here to burn time? 🙄",
		"The workload was agreed, so why does it keep growing? Is this scope creep? 📈",
		"A colleague keeps passing the buck whenever something breaks. Exhausting 😮‍💨",
	},
	"/tip": {
		"Keep a half-finished spreadsheet open. Instant productivity camouflage 📊",
		"Schedule a 'focus block' in your calendar and use it for coffee ☕",
		"Walk fast while carrying a laptop. Nobody stops someone on a mission 💻",
	},
}

// Pack is the full set of canned content used by the relay.
type Pack struct {
	BotName  string              `yaml:"botName"`
	Help     string              `yaml:"help"`
	Topics   []string            `yaml:"topics"`
	Commands map[string][]string `yaml:"commands"`
}

func Default() Pack {
	commands := make(map[string][]string, len(DefaultCommands))
	for token, replies := range DefaultCommands {
		commands[token] = append([]string(nil), replies...)
	}
	return Pack{
		BotName:  DefaultBotName,
		Help:     DefaultHelp,
		Topics:   append([]string(nil), DefaultTopics...),
		Commands: commands,
	}
}

// Load reads a YAML content pack. Sections missing from the file keep their defaults.
func Load(path string) (Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Pack, error) {
	var file Pack
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Pack{}, fmt.Errorf("yaml unmarshal: %w", err)
	}

	pack := Default()
	if strings.TrimSpace(file.BotName) != "" {
		pack.BotName = strings.TrimSpace(file.BotName)
	}
	if strings.TrimSpace(file.Help) != "" {
		pack.Help = file.Help
	}
	if len(file.Topics) > 0 {
		pack.Topics = file.Topics
	}
	if len(file.Commands) > 0 {
		pack.Commands = file.Commands
	}
	if err := pack.Validate(); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

func (p Pack) Validate() error {
	if len(p.Topics) == 0 {
		return errors.New("content: topic pool is empty")
	}
	for _, topic := range p.Topics {
		if strings.TrimSpace(topic) == "" {
			return errors.New("content: blank topic")
		}
	}
	for token, replies := range p.Commands {
		if !strings.HasPrefix(token, "/") || strings.ContainsAny(token, " \t\n") {
			return fmt.Errorf("content: invalid command token %q", token)
		}
		if len(replies) == 0 {
			return fmt.Errorf("content: command %s has no replies", token)
		}
		for _, reply := range replies {
			if strings.TrimSpace(reply) == "" {
				return fmt.Errorf("content: command %s has a blank reply", token)
			}
		}
	}
	return nil
}
