package test_utils

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

type SentOffer struct {
	To       string
	Username string
	Offer    webrtc.SessionDescription
}

type SentAnswer struct {
	To     string
	Answer webrtc.SessionDescription
}

type SentCandidate struct {
	To        string
	Candidate webrtc.ICECandidateInit
}

// FakeSignalSender captures outbound signaling instead of relaying it, so
// peer-link behavior can be asserted without a server.
type FakeSignalSender struct {
	sync.Mutex
	Offers     []SentOffer
	Answers    []SentAnswer
	Candidates []SentCandidate
}

func NewFakeSignalSender() *FakeSignalSender {
	return &FakeSignalSender{}
}

func (f *FakeSignalSender) SendOffer(to string, username string, offer *webrtc.SessionDescription) error {
	f.Lock()
	defer f.Unlock()
	f.Offers = append(f.Offers, SentOffer{To: to, Username: username, Offer: *offer})
	return nil
}

func (f *FakeSignalSender) SendAnswer(to string, answer *webrtc.SessionDescription) error {
	f.Lock()
	defer f.Unlock()
	f.Answers = append(f.Answers, SentAnswer{To: to, Answer: *answer})
	return nil
}

func (f *FakeSignalSender) SendCandidate(to string, candidate *webrtc.ICECandidate) error {
	f.Lock()
	defer f.Unlock()
	f.Candidates = append(f.Candidates, SentCandidate{To: to, Candidate: candidate.ToJSON()})
	return nil
}

func (f *FakeSignalSender) NumOffers() int {
	f.Lock()
	defer f.Unlock()
	return len(f.Offers)
}

func (f *FakeSignalSender) NumAnswers() int {
	f.Lock()
	defer f.Unlock()
	return len(f.Answers)
}

func (f *FakeSignalSender) LastOffer() SentOffer {
	f.Lock()
	defer f.Unlock()
	return f.Offers[len(f.Offers)-1]
}

func (f *FakeSignalSender) LastAnswer() SentAnswer {
	f.Lock()
	defer f.Unlock()
	return f.Answers[len(f.Answers)-1]
}
