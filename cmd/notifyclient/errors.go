package main

import (
	"errors"

	"github.com/collabhub/notifyclient/pkg/constants"
)

var (
	errNoToken     = constants.ErrNoToken
	errNotLoggedIn = errors.New("not logged in, run: notifyclient login --token <token>")
)
